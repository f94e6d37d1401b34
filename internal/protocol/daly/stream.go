package daly

import "bytes"

// StreamDecoder 从串口或网关透传的字节流中切出完整通知（处理半包/粘包）
// BLE 通知本身按帧到达，不需要经过这里
type StreamDecoder struct {
	profile *Profile
	buf     []byte
	dropped int
}

// NewStreamDecoder 创建流式解码器
func NewStreamDecoder(p *Profile) *StreamDecoder {
	return &StreamDecoder{profile: p, buf: make([]byte, 0, MaxFrameSize*2)}
}

// frameLen 按类型字节推算整帧长度；未知类型按字节计数处理
func (d *StreamDecoder) frameLen(kindByte byte) int {
	n := int(kindByte)
	if s, ok := d.profile.Kinds[kindByte]; ok {
		n = s.PayloadLen
	}
	return d.profile.headerSize() + n + crcSize
}

// Feed 追加数据并返回已完整、校验通过的原始通知
func (d *StreamDecoder) Feed(p []byte) [][]byte {
	if len(p) == 0 {
		return nil
	}
	d.buf = append(d.buf, p...)
	var out [][]byte
	marker := d.profile.Marker[:]

	for {
		start := bytes.Index(d.buf, marker)
		if start < 0 {
			// 保留最后 1 字节以应对跨边界的起始标记
			keep := 0
			if n := len(d.buf); n > 0 && d.buf[n-1] == marker[0] {
				keep = 1
			}
			d.dropped += len(d.buf) - keep
			d.buf = append(d.buf[:0], d.buf[len(d.buf)-keep:]...)
			return out
		}
		if start > 0 {
			d.dropped += start
			d.buf = append(d.buf[:0], d.buf[start:]...)
		}
		if len(d.buf) < d.profile.headerSize() {
			return out
		}
		total := d.frameLen(d.buf[d.profile.KindOffset])
		if total > MaxFrameSize {
			d.slide()
			continue
		}
		if len(d.buf) < total {
			return out
		}
		if !Verify(d.buf[:total]) {
			d.slide()
			continue
		}
		out = append(out, append([]byte(nil), d.buf[:total]...))
		d.buf = append(d.buf[:0], d.buf[total:]...)
		if len(d.buf) == 0 {
			return out
		}
	}
}

// slide 丢弃 1 字节后重新同步
func (d *StreamDecoder) slide() {
	d.dropped++
	d.buf = append(d.buf[:0], d.buf[1:]...)
}

// Dropped 重新同步时丢弃的累计字节数
func (d *StreamDecoder) Dropped() int { return d.dropped }

// Buffered 等待补齐的字节数
func (d *StreamDecoder) Buffered() int { return len(d.buf) }

// Reset 断线后清空缓冲
func (d *StreamDecoder) Reset() { d.buf = d.buf[:0] }
