package tcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionLimiter(t *testing.T) {
	t.Run("超过上限立即拒绝", func(t *testing.T) {
		limiter := NewConnectionLimiter(2)

		assert.True(t, limiter.TryAcquire())
		assert.True(t, limiter.TryAcquire())
		assert.False(t, limiter.TryAcquire())

		limiter.Release()
		assert.True(t, limiter.TryAcquire())

		stats := limiter.Stats()
		assert.Equal(t, 2, stats.MaxConnections)
		assert.Equal(t, 2, stats.ActiveConnections)
		assert.EqualValues(t, 1, stats.RejectedTotal)
	})

	t.Run("默认只允许一个连接", func(t *testing.T) {
		limiter := NewConnectionLimiter(0)
		assert.True(t, limiter.TryAcquire())
		assert.False(t, limiter.TryAcquire())
	})

	t.Run("多余的释放不会变负", func(t *testing.T) {
		limiter := NewConnectionLimiter(1)
		limiter.Release()
		assert.Equal(t, 0, limiter.Current())
	})
}
