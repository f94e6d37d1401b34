package daly

import "bytes"

// Adapter 字节流链路（串口、TCP 网关）适配器：流式切帧后逐帧交给 handler
type Adapter struct {
	decoder *StreamDecoder
	profile *Profile
	handler func(raw []byte) error
}

// NewAdapter handler 接收完整的原始通知
func NewAdapter(p *Profile, handler func(raw []byte) error) *Adapter {
	return &Adapter{decoder: NewStreamDecoder(p), profile: p, handler: handler}
}

// Sniff 检查起始标记
func (a *Adapter) Sniff(prefix []byte) bool {
	return len(prefix) >= 2 && bytes.HasPrefix(prefix, a.profile.Marker[:])
}

// ProcessBytes 处理上行字节流；返回第一个 handler 错误，剩余帧仍会投递
func (a *Adapter) ProcessBytes(p []byte) error {
	var first error
	for _, raw := range a.decoder.Feed(p) {
		if err := a.handler(raw); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Decoder 底层流式解码器
func (a *Adapter) Decoder() *StreamDecoder { return a.decoder }

// Dropped 重新同步累计丢弃的字节数
func (a *Adapter) Dropped() int { return a.decoder.Dropped() }
