package replay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/logging"
)

// Handler 接收一条原始通知
type Handler func(ctx context.Context, raw []byte) error

// Player 按抓包节奏回放通知；同时充当下行链路，记录收到的命令
type Player struct {
	capture  *Capture
	interval time.Duration
	loop     bool
	logger   *zap.Logger

	mu       sync.Mutex
	commands [][]byte
}

// NewPlayer interval 为未指定 delay 时的默认间隔
func NewPlayer(c *Capture, interval time.Duration, loop bool, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{capture: c, interval: interval, loop: loop, logger: logger}
}

// Run 回放直到结束（loop=false）或 ctx 取消；handler 错误只记录
func (p *Player) Run(ctx context.Context, h Handler) error {
	for {
		for _, n := range p.capture.Notifications {
			delay := n.Delay
			if delay <= 0 {
				delay = p.interval
			}
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}

			raw, _ := n.Bytes()
			if err := h(ctx, raw); err != nil {
				p.logger.Warn("replayed notification rejected", zap.String("label", n.Label), zap.Error(err))
			}
		}
		if !p.loop {
			return nil
		}
	}
}

// Write 实现 session.Writer：回放模式下命令只记录不下发
func (p *Player) Write(_ context.Context, frame []byte) error {
	p.mu.Lock()
	p.commands = append(p.commands, append([]byte(nil), frame...))
	p.mu.Unlock()
	p.logger.Debug("replay link swallowed command", logging.Hex("frame", frame))
	return nil
}

// Commands 已收到的命令
func (p *Player) Commands() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.commands...)
}
