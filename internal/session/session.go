package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/logging"
	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
)

var (
	// ErrNoLink 未绑定下行链路
	ErrNoLink = errors.New("no link to bms")
	// ErrRateLimited 在 ctx 结束前拿不到下发配额
	ErrRateLimited = errors.New("command rate limited")
)

// Writer 下行链路（BLE 特征写入 / 串口透传）
type Writer interface {
	Write(ctx context.Context, frame []byte) error
}

// Sink 读数下游（Redis、NATS、WebSocket）
type Sink interface {
	Name() string
	Publish(ctx context.Context, u Update) error
}

// Resetter 可选：持有外部快照副本的下游在会话清空快照时一并清理
type Resetter interface {
	Reset(ctx context.Context, device string) error
}

// Update 一帧合并后的结果
type Update struct {
	Device   string                `json:"device"`
	Kind     string                `json:"kind"`
	Reading  daly.Reading          `json:"reading"`
	Snapshot map[string]daly.Value `json:"-"`
	At       time.Time             `json:"at"`
}

// Command 已发送的下行命令，ID 用于日志关联
type Command struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Frame  string    `json:"frame"`
	SentAt time.Time `json:"sent_at"`
}

// Session 单个 BMS 连接：引擎无状态，快照由会话持有并加锁
type Session struct {
	device  string
	engine  *daly.Engine
	pacer   *Pacer
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	sinkTimeout time.Duration

	mu        sync.RWMutex
	writer    Writer
	snap      *daly.Snapshot
	lastFrame time.Time
	connected bool
	sinks     []Sink
	onConnect []func()
}

// Option 会话选项
type Option func(*Session)

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

func WithMetrics(m *metrics.AppMetrics) Option { return func(s *Session) { s.metrics = m } }

func WithPacer(p *Pacer) Option { return func(s *Session) { s.pacer = p } }

func WithSinks(sinks ...Sink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sinks...) }
}

// WithSinkTimeout 单个下游的发布超时
func WithSinkTimeout(d time.Duration) Option { return func(s *Session) { s.sinkTimeout = d } }

// New 创建会话
func New(device string, engine *daly.Engine, opts ...Option) *Session {
	s := &Session{
		device:      device,
		engine:      engine,
		snap:        daly.NewSnapshot(),
		sinkTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.pacer == nil {
		s.pacer = NewPacer(0, 0)
	}
	s.logger = s.logger.With(zap.String("device", device), zap.String("profile", engine.Profile().Name))
	return s
}

func (s *Session) Device() string         { return s.device }
func (s *Session) Engine() *daly.Engine   { return s.engine }
func (s *Session) Profile() *daly.Profile { return s.engine.Profile() }

// AddSink 追加下游
func (s *Session) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// OnConnect 注册链路建立回调（如首轮轮询）
func (s *Session) OnConnect(fn func()) {
	s.mu.Lock()
	s.onConnect = append(s.onConnect, fn)
	s.mu.Unlock()
}

// Attach 绑定下行链路并标记已连接
func (s *Session) Attach(w Writer) {
	s.mu.Lock()
	s.writer = w
	s.connected = true
	hooks := append([]func(){}, s.onConnect...)
	s.mu.Unlock()

	s.logger.Info("bms link attached")
	for _, fn := range hooks {
		fn()
	}
}

// Detach 链路断开；快照保留最后一次的值
func (s *Session) Detach() {
	s.mu.Lock()
	s.writer = nil
	s.connected = false
	s.mu.Unlock()
	s.logger.Info("bms link detached")
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// LastFrame 最近一次有效通知的时间
func (s *Session) LastFrame() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrame
}

// Snapshot 当前快照副本
func (s *Session) Snapshot() map[string]daly.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Fields()
}

// Field 读取单个字段
func (s *Session) Field(name string) (daly.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Get(name)
}

// ResetSnapshot 清空快照（会话启动、切换设备后使用），并清理实现 Resetter 的下游
// 内存快照总会清空；下游错误合并返回
func (s *Session) ResetSnapshot(ctx context.Context) error {
	s.mu.Lock()
	s.snap.Reset()
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SnapshotFields.WithLabelValues(s.device).Set(0)
	}

	var errs []error
	for _, sink := range sinks {
		r, ok := sink.(Resetter)
		if !ok {
			continue
		}
		if err := r.Reset(ctx, s.device); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// HandleNotification 处理一条原始通知：校验、解码、合并进快照并分发到下游
// 帧级错误只记录并返回，不影响后续通知
func (s *Session) HandleNotification(ctx context.Context, raw []byte) (daly.Reading, error) {
	if s.metrics != nil {
		s.metrics.BytesReceived.Add(float64(len(raw)))
	}

	f, r, err := s.engine.Process(raw)
	kind := daly.KindUnknown.String()
	if f != nil {
		kind = f.Kind.String()
	}
	if s.metrics != nil {
		s.metrics.FramesTotal.WithLabelValues(kind, daly.ErrorLabel(err)).Inc()
	}
	if err != nil {
		s.logger.Warn("drop notification",
			zap.String("kind", kind),
			zap.String("reason", daly.ErrorLabel(err)),
			zap.Int("len", len(raw)),
			logging.Hex("raw", raw),
			zap.Error(err),
		)
		return nil, err
	}

	now := time.Now()
	s.mu.Lock()
	merged := s.snap.Merge(r)
	total := s.snap.Len()
	s.lastFrame = now
	snap := s.snap.Fields()
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ReadingsMerged.Add(float64(merged))
		s.metrics.SnapshotFields.WithLabelValues(s.device).Set(float64(total))
		s.metrics.LastFrameTime.WithLabelValues(s.device).Set(float64(now.Unix()))
	}
	s.logger.Debug("frame merged", zap.String("kind", kind), zap.Int("fields", merged))

	s.publish(ctx, sinks, Update{Device: s.device, Kind: kind, Reading: r, Snapshot: snap, At: now})
	return r, nil
}

func (s *Session) publish(ctx context.Context, sinks []Sink, u Update) {
	for _, sink := range sinks {
		pctx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
		err := sink.Publish(pctx, u)
		cancel()
		result := "ok"
		if err != nil {
			result = "error"
			s.logger.Warn("sink publish failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.SinkTotal.WithLabelValues(sink.Name(), result).Inc()
		}
	}
}

// Send 构造并下发命令；构造失败（如 profile 不支持）不会占用节流配额
func (s *Session) Send(ctx context.Context, name string, build func(p *daly.Profile) ([]byte, error)) (*Command, error) {
	frame, err := build(s.engine.Profile())
	if err != nil {
		s.countCommand(name, daly.ErrorLabel(err))
		return nil, err
	}

	s.mu.RLock()
	w := s.writer
	s.mu.RUnlock()
	if w == nil {
		s.countCommand(name, "no_link")
		return nil, fmt.Errorf("%s: %w", name, ErrNoLink)
	}

	if err := s.pacer.Wait(ctx); err != nil {
		s.countCommand(name, "rate_limited")
		return nil, fmt.Errorf("%s: %w: %v", name, ErrRateLimited, err)
	}

	cmd := &Command{
		ID:     uuid.NewString(),
		Name:   name,
		Frame:  strings.ToUpper(hex.EncodeToString(frame)),
		SentAt: time.Now(),
	}
	if err := w.Write(ctx, frame); err != nil {
		s.countCommand(name, "write_error")
		s.logger.Warn("command write failed", zap.String("command_id", cmd.ID), zap.String("command", name), zap.Error(err))
		return nil, fmt.Errorf("%s: write: %w", name, err)
	}
	s.countCommand(name, "ok")
	s.logger.Info("command sent", zap.String("command_id", cmd.ID), zap.String("command", name), logging.Hex("frame", frame))
	return cmd, nil
}

func (s *Session) countCommand(name, result string) {
	if s.metrics != nil {
		s.metrics.CommandsTotal.WithLabelValues(name, result).Inc()
	}
}

func (s *Session) RequestStatus(ctx context.Context) (*Command, error) {
	return s.Send(ctx, "request_status", daly.RequestStatus)
}

func (s *Session) RequestSettings(ctx context.Context) (*Command, error) {
	return s.Send(ctx, "request_settings", daly.RequestSettings)
}

func (s *Session) RequestVersions(ctx context.Context) (*Command, error) {
	return s.Send(ctx, "request_versions", daly.RequestVersions)
}

func (s *Session) RequestPassword(ctx context.Context) (*Command, error) {
	return s.Send(ctx, "request_password", daly.RequestPassword)
}

func (s *Session) RequestCellInfo(ctx context.Context) (*Command, error) {
	return s.Send(ctx, "request_cell_info", daly.RequestCellInfo)
}

// Read 任意寄存器读
func (s *Session) Read(ctx context.Context, address, quantity uint16) (*Command, error) {
	return s.Send(ctx, "read", func(p *daly.Profile) ([]byte, error) {
		return daly.BuildRead(p, address, quantity)
	})
}

// Write 任意寄存器写
func (s *Session) Write(ctx context.Context, address, value uint16) (*Command, error) {
	return s.Send(ctx, "write", func(p *daly.Profile) ([]byte, error) {
		return daly.BuildWrite(p, address, value)
	})
}

// Action 固定操作码动作
func (s *Session) Action(ctx context.Context, a daly.Action) (*Command, error) {
	return s.Send(ctx, a.String(), func(p *daly.Profile) ([]byte, error) {
		return daly.BuildAction(p, a)
	})
}

func (s *Session) SetChargingMOS(ctx context.Context, on bool) (*Command, error) {
	return s.Send(ctx, "set_charging_mos", func(p *daly.Profile) ([]byte, error) {
		return daly.SetChargingMOS(p, on)
	})
}

func (s *Session) SetDischargingMOS(ctx context.Context, on bool) (*Command, error) {
	return s.Send(ctx, "set_discharging_mos", func(p *daly.Profile) ([]byte, error) {
		return daly.SetDischargingMOS(p, on)
	})
}

func (s *Session) SetSOC(ctx context.Context, percent float64) (*Command, error) {
	return s.Send(ctx, "set_soc", func(p *daly.Profile) ([]byte, error) {
		return daly.SetSOC(p, percent)
	})
}

// Info 会话概要
type Info struct {
	Device    string     `json:"device"`
	Profile   string     `json:"profile"`
	Connected bool       `json:"connected"`
	LastFrame *time.Time `json:"last_frame,omitempty"`
	Fields    int        `json:"fields"`
	Pacer     PacerStats `json:"pacer"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		Device:    s.device,
		Profile:   s.engine.Profile().Name,
		Connected: s.connected,
		Fields:    s.snap.Len(),
		Pacer:     s.pacer.Stats(),
	}
	if !s.lastFrame.IsZero() {
		t := s.lastFrame
		info.LastFrame = &t
	}
	return info
}
