package health

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSStatus 由 publish.Publisher 实现
type NATSStatus interface {
	Status() nats.Status
}

// NATSChecker 读数发布连接检查；重连期间发布会被缓冲，视为降级
type NATSChecker struct {
	conn NATSStatus
}

func NewNATSChecker(conn NATSStatus) *NATSChecker { return &NATSChecker{conn: conn} }

func (c *NATSChecker) Name() string { return "nats" }

func (c *NATSChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	st := c.conn.Status()
	result := CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"state": st.String()},
	}
	switch st {
	case nats.CONNECTED:
	case nats.RECONNECTING, nats.CONNECTING:
		result.Status, result.Message = StatusDegraded, "reconnecting"
	default:
		result.Status, result.Message = StatusUnhealthy, "connection closed"
	}
	result.Latency = time.Since(start)
	return result
}
