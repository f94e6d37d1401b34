package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/taoyao-code/daly-bms/internal/session"
	"github.com/taoyao-code/daly-bms/internal/transport"
)

type fakeRedis struct {
	err   error
	stats redis.PoolStats
}

func (f *fakeRedis) HealthCheck(context.Context) error { return f.err }
func (f *fakeRedis) Stats() *redis.PoolStats          { return &f.stats }

type fakeNATS nats.Status

func (f fakeNATS) Status() nats.Status { return nats.Status(f) }

type fakeSession session.Info

func (f fakeSession) Info() session.Info { return session.Info(f) }

func TestRedisChecker(t *testing.T) {
	ctx := context.Background()

	r := NewRedisChecker(&fakeRedis{err: errors.New("connection refused")}).Check(ctx)
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Contains(t, r.Message, "connection refused")

	r = NewRedisChecker(&fakeRedis{stats: redis.PoolStats{TotalConns: 10, IdleConns: 0}}).Check(ctx)
	assert.Equal(t, StatusDegraded, r.Status)

	r = NewRedisChecker(&fakeRedis{stats: redis.PoolStats{TotalConns: 4, IdleConns: 3}}).Check(ctx)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "25.0%", r.Details["utilization"])
}

func TestNATSChecker(t *testing.T) {
	tests := []struct {
		name  string
		state nats.Status
		want  Status
	}{
		{name: "已连接", state: nats.CONNECTED, want: StatusHealthy},
		{name: "重连中", state: nats.RECONNECTING, want: StatusDegraded},
		{name: "已关闭", state: nats.CLOSED, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewNATSChecker(fakeNATS(tt.state)).Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
		})
	}
}

func TestLinkChecker(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Second)
	old := now.Add(-5 * time.Minute)

	tests := []struct {
		name    string
		info    session.Info
		want    Status
		message string
	}{
		{name: "未连接", info: session.Info{Connected: false}, want: StatusDegraded, message: "not connected"},
		{name: "等待首帧", info: session.Info{Connected: true}, want: StatusHealthy, message: "waiting for first notification"},
		{name: "通知正常", info: session.Info{Connected: true, LastFrame: &recent}, want: StatusHealthy, message: "ok"},
		{name: "通知超时", info: session.Info{Connected: true, LastFrame: &old}, want: StatusDegraded, message: "notifications stale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLinkChecker(fakeSession(tt.info), time.Minute, nil)
			c.now = func() time.Time { return now }
			r := c.Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, tt.message, r.Message)
		})
	}

	t.Run("写熔断", func(t *testing.T) {
		b := transport.NewBreaker(1, time.Hour)
		_ = b.Call(func() error { return errors.New("i/o") })

		c := NewLinkChecker(fakeSession(session.Info{Connected: true, LastFrame: &recent}), time.Minute, b)
		c.now = func() time.Time { return now }
		r := c.Check(context.Background())
		assert.Equal(t, StatusDegraded, r.Status)
		assert.Equal(t, "command writes suspended", r.Message)
	})
}
