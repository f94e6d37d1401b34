package daly

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// decoder 单个帧类型的解码函数，payload 长度已由 checkLength 保证
type decoder func(p *Profile, payload []byte, opts decodeOptions) Reading

type decodeOptions struct {
	alarmDelimiter string
}

var decoders = map[Kind]decoder{
	KindStatus:   decodeStatus,
	KindSettings: decodeSettings,
	KindVersions: decodeVersions,
	KindPassword: decodePassword,
	KindCellInfo: decodeCellInfo,
}

// checkLength 解码前校验负载长度，防止按固定偏移越界读取
func checkLength(p *Profile, k Kind, payload []byte) error {
	want, ok := p.PayloadLen(k)
	if !ok {
		return fmt.Errorf("%w: %s not in profile %s", ErrUnknownKind, k, p.Name)
	}
	if len(payload) != want {
		return &PayloadLengthError{Kind: k, Expected: want, Got: len(payload)}
	}
	return nil
}

// word 读取大端 16 位字
func word(b []byte, off int) uint16 {
	return binary.BigEndian.Uint16(b[off : off+2])
}

// float32At 由两个连续大端半字（高半字在前）拼出 IEEE-754 单精度浮点
func float32At(b []byte, off int) float32 {
	hi := uint32(word(b, off))
	lo := uint32(word(b, off+2))
	return math.Float32frombits(hi<<16 | lo)
}

// textAt 定宽文本，去掉尾部 NUL 填充
func textAt(b []byte, off, width int) string {
	return string(bytes.TrimRight(b[off:off+width], "\x00"))
}

func clamp(n uint16, max int) int {
	if int(n) > max {
		return max
	}
	return int(n)
}

// cellStats 单体电压聚合：最小值忽略 0V 槽位，索引从 1 开始
func cellStats(r Reading, volts []float64) {
	if len(volts) == 0 {
		return
	}
	var sum float64
	minV, maxV := math.Inf(1), math.Inf(-1)
	minIdx, maxIdx := 0, 0
	for i, v := range volts {
		sum += v
		if v > 0 && v < minV {
			minV, minIdx = v, i+1
		}
		if v > maxV {
			maxV, maxIdx = v, i+1
		}
	}
	r["max_cell_voltage"] = Float(maxV, "V")
	r["max_voltage_cell"] = Int(int64(maxIdx), "")
	r["average_cell_voltage"] = Float(sum/float64(len(volts)), "V")
	if minIdx > 0 {
		r["min_cell_voltage"] = Float(minV, "V")
		r["min_voltage_cell"] = Int(int64(minIdx), "")
	}
}
