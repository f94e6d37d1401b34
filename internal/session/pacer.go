package session

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Pacer 下行命令节流（Token Bucket），BMS 对连续写入处理较慢
type Pacer struct {
	limiter       *rate.Limiter
	perSecond     float64
	burst         int
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewPacer 创建命令节流器
// perSecond: 每秒允许的命令数（稳定速率）
// burst: 突发容量（桶的大小）
func NewPacer(perSecond float64, burst int) *Pacer {
	if perSecond <= 0 {
		perSecond = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
		perSecond: perSecond,
		burst:     burst,
	}
}

// Allow 非阻塞检查
func (p *Pacer) Allow() bool {
	if p.limiter.Allow() {
		p.allowedCount.Add(1)
		return true
	}
	p.rejectedCount.Add(1)
	return false
}

// Wait 等待直到允许发送（受 ctx 超时控制）
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		p.rejectedCount.Add(1)
		return err
	}
	p.allowedCount.Add(1)
	return nil
}

// Stats 获取统计信息
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		PerSecond:     p.perSecond,
		Burst:         p.burst,
		AllowedTotal:  p.allowedCount.Load(),
		RejectedTotal: p.rejectedCount.Load(),
	}
}

// PacerStats 节流器统计信息
type PacerStats struct {
	PerSecond     float64 `json:"per_second"`
	Burst         int     `json:"burst"`
	AllowedTotal  int64   `json:"allowed_total"`
	RejectedTotal int64   `json:"rejected_total"`
}
