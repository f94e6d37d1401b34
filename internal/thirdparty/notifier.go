package thirdparty

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/daly-bms/internal/metrics"
	"github.com/taoyao-code/daly-bms/internal/protocol/daly"
	"github.com/taoyao-code/daly-bms/internal/session"
)

// AlarmNotifier 实现 session.Sink：状态帧中 error_bitmask 跳变时推送告警事件。
// Publish 只入队，推送与重试在 Run 中完成，不阻塞会话。
type AlarmNotifier struct {
	endpoint string
	pusher   *Pusher
	deduper  Deduper
	logger   *zap.Logger
	metrics  *metrics.AppMetrics

	queue chan Event

	mu   sync.Mutex
	last uint8
}

// NotifierOption 选项
type NotifierOption func(*AlarmNotifier)

// WithDeduper 未设置时不去重
func WithDeduper(d Deduper) NotifierOption { return func(n *AlarmNotifier) { n.deduper = d } }

func WithNotifierLogger(l *zap.Logger) NotifierOption {
	return func(n *AlarmNotifier) { n.logger = l }
}

func WithNotifierMetrics(m *metrics.AppMetrics) NotifierOption {
	return func(n *AlarmNotifier) { n.metrics = m }
}

// NewAlarmNotifier queueSize <= 0 时取 64
func NewAlarmNotifier(endpoint string, pusher *Pusher, queueSize int, opts ...NotifierOption) *AlarmNotifier {
	if queueSize <= 0 {
		queueSize = 64
	}
	n := &AlarmNotifier{
		endpoint: endpoint,
		pusher:   pusher,
		queue:    make(chan Event, queueSize),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	return n
}

func (n *AlarmNotifier) Name() string { return "webhook" }

// Publish 非状态帧或未选中 error_bitmask 时忽略
func (n *AlarmNotifier) Publish(_ context.Context, u session.Update) error {
	if u.Kind != daly.KindStatus.String() {
		return nil
	}
	v, ok := u.Reading["error_bitmask"]
	if !ok {
		return nil
	}
	cur := uint8(v.Int)

	n.mu.Lock()
	prev := n.last
	n.last = cur
	n.mu.Unlock()

	for _, ev := range AlarmEvents(u.Device, prev, cur, u.At) {
		select {
		case n.queue <- ev:
		default:
			n.count(ev.Event, "dropped")
			n.logger.Warn("webhook queue full, event dropped", zap.String("event_id", ev.ID))
		}
	}
	return nil
}

// Run 逐个推送队列中的事件，直到 ctx 结束
func (n *AlarmNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

func (n *AlarmNotifier) deliver(ctx context.Context, ev Event) {
	logger := n.logger.With(zap.String("event_id", ev.ID), zap.String("event", ev.Event))

	if n.deduper != nil {
		dup, err := n.deduper.IsDuplicate(ctx, ev.StateKey(), ev.Event)
		if err != nil {
			// 去重存储不可用时照常推送
			logger.Warn("webhook dedup check failed", zap.Error(err))
		} else if dup {
			n.count(ev.Event, "duplicate")
			logger.Debug("webhook event suppressed as duplicate")
			return
		}
	}

	code, _, err := n.pusher.SendJSON(ctx, n.endpoint, ev)
	switch {
	case err != nil:
		n.count(ev.Event, "error")
		logger.Error("webhook push failed", zap.Error(err))
	case code >= http.StatusMultipleChoices:
		n.count(ev.Event, "http_4xx")
		logger.Warn("webhook rejected", zap.Int("status", code))
	default:
		n.count(ev.Event, "ok")
		logger.Info("webhook pushed", zap.Any("alarm", ev.Data["alarm"]))
	}
}

func (n *AlarmNotifier) count(event, result string) {
	if n.metrics != nil {
		n.metrics.WebhookTotal.WithLabelValues(event, result).Inc()
	}
}
