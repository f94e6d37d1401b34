package daly

import "fmt"

const (
	// MaxFrameSize BLE 单次通知的最大长度
	MaxFrameSize = 129
	// MinFrameSize marker(2) + kind(1) + crc(2)
	MinFrameSize = 5

	crcSize = 2
)

// Kind 帧类型
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStatus
	KindSettings
	KindVersions
	KindPassword
	KindCellInfo
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindSettings:
		return "settings"
	case KindVersions:
		return "versions"
	case KindPassword:
		return "password"
	case KindCellInfo:
		return "cell_info"
	default:
		return "unknown"
	}
}

// Frame 一帧完整且已校验的应答
// 布局：marker[2] | kind[1] | payload[..] | crcLE[2]
type Frame struct {
	Raw      []byte
	Kind     Kind
	KindByte byte
	Payload  []byte
}

// DecodeFrame 按 profile 校验并切分一帧（快速失败：长度、marker、上限、CRC、类型）
func DecodeFrame(p *Profile, raw []byte) (*Frame, error) {
	header := p.headerSize()
	if len(raw) < MinFrameSize || len(raw) < header+crcSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(raw))
	}
	if raw[0] != p.Marker[0] || raw[1] != p.Marker[1] {
		return nil, fmt.Errorf("%w: % X", ErrInvalidMarker, raw[:2])
	}
	if len(raw) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrOversized, len(raw))
	}
	if !Verify(raw) {
		n := len(raw) - crcSize
		return nil, fmt.Errorf("%w: computed 0x%04X, remote 0x%04X", ErrChecksumMismatch,
			Checksum(raw[:n]), uint16(raw[n])|uint16(raw[n+1])<<8)
	}
	kb := raw[p.KindOffset]
	spec, ok := p.Kinds[kb]
	if !ok {
		return nil, &UnknownKindError{Kind: kb}
	}

	// 拷贝一份，避免与传输层缓冲区共享底层数组
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &Frame{
		Raw:      buf,
		Kind:     spec.Kind,
		KindByte: kb,
		Payload:  buf[header : len(buf)-crcSize],
	}, nil
}

// EncodeFrame 构造一帧应答（与 DecodeFrame 对应，设备模拟与测试使用）
func EncodeFrame(p *Profile, kindByte byte, payload []byte) []byte {
	header := p.headerSize()
	buf := make([]byte, header, header+len(payload)+crcSize)
	buf[0], buf[1] = p.Marker[0], p.Marker[1]
	buf[p.KindOffset] = kindByte
	buf = append(buf, payload...)
	return appendChecksum(buf)
}

// Encode 重新序列化帧
func (f *Frame) Encode(p *Profile) []byte {
	return EncodeFrame(p, f.KindByte, f.Payload)
}
