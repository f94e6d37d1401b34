package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	errWrite := errors.New("write failed")

	t.Run("连续失败后熔断并恢复", func(t *testing.T) {
		now := time.Unix(0, 0)
		b := NewBreaker(3, time.Second)
		b.now = func() time.Time { return now }

		var transitions []string
		b.OnStateChange(func(from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		})

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, b.Call(func() error { return errWrite }), errWrite)
		}
		assert.Equal(t, StateOpen, b.State())

		called := false
		assert.ErrorIs(t, b.Call(func() error { called = true; return nil }), ErrCircuitOpen)
		assert.False(t, called, "熔断期间不执行写入")

		now = now.Add(2 * time.Second)
		assert.NoError(t, b.Call(func() error { return nil }))
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
		assert.Equal(t, int64(1), b.Stats().TripCount)
	})

	t.Run("成功清零失败计数", func(t *testing.T) {
		b := NewBreaker(2, time.Second)
		_ = b.Call(func() error { return errWrite })
		_ = b.Call(func() error { return nil })
		_ = b.Call(func() error { return errWrite })
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, 1, b.Stats().Failures)
	})

	t.Run("试探失败立即熔断", func(t *testing.T) {
		now := time.Unix(0, 0)
		b := NewBreaker(1, time.Second)
		b.now = func() time.Time { return now }

		_ = b.Call(func() error { return errWrite })
		now = now.Add(2 * time.Second)
		_ = b.Call(func() error { return errWrite })
		assert.Equal(t, StateOpen, b.State())
		assert.Equal(t, int64(2), b.Stats().TripCount)

		b.Reset()
		assert.Equal(t, StateClosed, b.State())
	})
}
