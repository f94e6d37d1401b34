package transport

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/logging"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/adapter"
)

// Pump 把字节流持续喂给适配器，直到读出错或 ctx 结束。
// 首个数据块用于判断是否从帧头开始；重新同步丢弃的字节计入 StreamDropped。
func Pump(ctx context.Context, r io.Reader, a adapter.Adapter, logger *zap.Logger, m *metrics.AppMetrics) error {
	buf := make([]byte, 256)
	synced := false
	dropped := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if !synced {
				synced = true
				if !a.Sniff(chunk) {
					logger.Debug("stream starts mid-frame", logging.Hex("head", chunk))
				}
			}
			// 帧级错误已由会话记录
			_ = a.ProcessBytes(chunk)

			if d, ok := a.(interface{ Dropped() int }); ok {
				if delta := d.Dropped() - dropped; delta > 0 && m != nil {
					m.StreamDropped.Add(float64(delta))
				}
				dropped = d.Dropped()
			}
		}
		if err != nil {
			if err == io.EOF {
				return err
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}
