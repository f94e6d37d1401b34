package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller 周期性请求状态帧；链路建立后立即请求一次
type Poller struct {
	session  *Session
	interval time.Duration
	kick     chan struct{}
}

// NewPoller interval<=0 时只在链路建立时请求
func NewPoller(s *Session, interval time.Duration) *Poller {
	p := &Poller{session: s, interval: interval, kick: make(chan struct{}, 1)}
	s.OnConnect(p.Kick)
	return p
}

// Kick 请求尽快轮询一次（非阻塞，合并重复请求）
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run 阻塞运行直到 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.poll(ctx)
		case <-p.kick:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	s := p.session
	if !s.Connected() {
		return
	}
	if s.metrics != nil {
		s.metrics.PollTotal.Inc()
	}
	if _, err := s.RequestStatus(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("status poll failed", zap.Error(err))
	}
}
