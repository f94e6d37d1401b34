package daly

import "fmt"

// Engine 协议引擎：绑定一个 profile，无内部可变状态，可被多个 goroutine 共享
type Engine struct {
	profile        *Profile
	alarmDelimiter string
	fields         *FieldSelector
}

// Option 引擎选项
type Option func(*Engine)

// WithAlarmDelimiter 告警名称分隔符
func WithAlarmDelimiter(d string) Option {
	return func(e *Engine) { e.alarmDelimiter = d }
}

// WithFields 只输出选中的字段
func WithFields(fs *FieldSelector) Option {
	return func(e *Engine) { e.fields = fs }
}

// NewEngine 创建引擎
func NewEngine(p *Profile, opts ...Option) *Engine {
	e := &Engine{profile: p, alarmDelimiter: DefaultAlarmDelimiter}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile 当前 profile
func (e *Engine) Profile() *Profile { return e.profile }

// DecodeFrame 校验原始通知并切分为帧
func (e *Engine) DecodeFrame(raw []byte) (*Frame, error) {
	return DecodeFrame(e.profile, raw)
}

// Ingest 按帧类型选择解码器，返回本帧的读数
func (e *Engine) Ingest(f *Frame) (Reading, error) {
	dec, ok := decoders[f.Kind]
	if !ok {
		return nil, &UnknownKindError{Kind: f.KindByte}
	}
	if err := checkLength(e.profile, f.Kind, f.Payload); err != nil {
		return nil, err
	}
	r := dec(e.profile, f.Payload, decodeOptions{alarmDelimiter: e.alarmDelimiter})
	return e.fields.Filter(r), nil
}

// Process DecodeFrame + Ingest
func (e *Engine) Process(raw []byte) (*Frame, Reading, error) {
	f, err := e.DecodeFrame(raw)
	if err != nil {
		return nil, nil, err
	}
	r, err := e.Ingest(f)
	if err != nil {
		return f, nil, fmt.Errorf("decode %s frame: %w", f.Kind, err)
	}
	return f, r, nil
}

func (e *Engine) BuildRead(address, quantity uint16) ([]byte, error) {
	return BuildRead(e.profile, address, quantity)
}

func (e *Engine) BuildWrite(address, value uint16) ([]byte, error) {
	return BuildWrite(e.profile, address, value)
}

func (e *Engine) BuildAction(a Action) ([]byte, error) {
	return BuildAction(e.profile, a)
}
