package health

import (
	"context"
	"time"

	"github.com/taoyao-code/daly-bms/internal/session"
	"github.com/taoyao-code/daly-bms/internal/transport"
)

// SessionInfo 由 session.Session 实现
type SessionInfo interface {
	Info() session.Info
}

// LinkChecker BMS 链路检查：未连接、通知超时、写熔断均为降级
type LinkChecker struct {
	session    SessionInfo
	staleAfter time.Duration
	breaker    *transport.Breaker
	now        func() time.Time
}

// NewLinkChecker breaker 可为 nil（BLE / 回放模式）
func NewLinkChecker(s SessionInfo, staleAfter time.Duration, breaker *transport.Breaker) *LinkChecker {
	return &LinkChecker{session: s, staleAfter: staleAfter, breaker: breaker, now: time.Now}
}

func (c *LinkChecker) Name() string { return "bms_link" }

func (c *LinkChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	info := c.session.Info()
	details := map[string]any{
		"device":    info.Device,
		"profile":   info.Profile,
		"connected": info.Connected,
		"fields":    info.Fields,
	}
	result := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}

	switch {
	case !info.Connected:
		result.Status, result.Message = StatusDegraded, "not connected"
	case info.LastFrame == nil:
		result.Message = "waiting for first notification"
	default:
		age := c.now().Sub(*info.LastFrame)
		details["last_frame_age"] = age.Round(time.Millisecond).String()
		if c.staleAfter > 0 && age > c.staleAfter {
			result.Status, result.Message = StatusDegraded, "notifications stale"
		}
	}

	if c.breaker != nil {
		bs := c.breaker.Stats()
		details["breaker"] = bs
		if bs.State == transport.StateOpen.String() {
			result.Status, result.Message = StatusDegraded, "command writes suspended"
		}
	}
	result.Latency = time.Since(start)
	return result
}
