package httpserver

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestGlobalConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(3)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// 4th acquire should fail
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	limiter.Release()
	assert.Equal(t, int64(2), limiter.Current())

	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(100)
	var successCount, failCount atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup

	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.Acquire() {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), successCount.Load())
	assert.Equal(t, int64(100), failCount.Load())
	assert.Equal(t, int64(100), limiter.Current())
}

func TestGlobalConnectionLimiter_CapacityPct(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(100)

	assert.Equal(t, 0.0, limiter.CapacityPct())

	for range 50 {
		limiter.Acquire()
	}
	assert.Equal(t, 50.0, limiter.CapacityPct())
}

func TestGlobalConnectionLimiter_ZeroMax(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(0)
	assert.False(t, limiter.Acquire())
	assert.Equal(t, 0.0, limiter.CapacityPct())
}

func TestIPConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)

	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.Equal(t, 2, limiter.Count("192.168.1.1"))

	assert.False(t, limiter.Acquire("192.168.1.1"))

	// Different IP should succeed
	assert.True(t, limiter.Acquire("192.168.1.2"))
	assert.Equal(t, 2, limiter.UniqueIPs())

	limiter.Release("192.168.1.1")
	assert.Equal(t, 1, limiter.Count("192.168.1.1"))
	assert.True(t, limiter.Acquire("192.168.1.1"))
}

func TestIPConnectionLimiter_ReleaseToZeroForgetsIP(t *testing.T) {
	limiter := NewIPConnectionLimiter(5)

	assert.True(t, limiter.Acquire("192.168.1.1"))
	limiter.Release("192.168.1.1")
	limiter.Release("192.168.1.1")

	assert.Equal(t, 0, limiter.UniqueIPs())
	assert.Equal(t, 0, limiter.Count("192.168.1.1"))
}

func TestConnectionRateLimiter_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewConnectionRateLimiter(2.0, 2, clock)

	assert.True(t, limiter.Allow("192.168.1.1"))
	assert.True(t, limiter.Allow("192.168.1.1"))

	// Burst exhausted and the fake clock has not moved
	assert.False(t, limiter.Allow("192.168.1.1"))

	assert.True(t, limiter.Allow("192.168.1.2"))
	assert.Equal(t, 2, limiter.ActiveLimiters())
}

func TestConnectionRateLimiter_TokenRefill(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewConnectionRateLimiter(10.0, 5, clock)

	for range 5 {
		assert.True(t, limiter.Allow("192.168.1.1"))
	}
	assert.False(t, limiter.Allow("192.168.1.1"))

	// 100ms = 1 token at 10/sec
	clock.Advance(100 * time.Millisecond)
	assert.True(t, limiter.Allow("192.168.1.1"))
	assert.False(t, limiter.Allow("192.168.1.1"))
}

func TestConnectionRateLimiter_IdleLimitersAreSwept(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewConnectionRateLimiter(10.0, 5, clock)

	limiter.Allow("192.168.1.1")

	// First sweep: nothing has been idle for long enough yet
	clock.Advance(6 * time.Minute)
	limiter.Allow("192.168.1.2")
	assert.Equal(t, 2, limiter.ActiveLimiters())

	// Second sweep: .1 has been idle for 12 minutes, .2 for 6
	clock.Advance(6 * time.Minute)
	limiter.Allow("192.168.1.3")

	assert.Equal(t, 2, limiter.ActiveLimiters())
}

func TestConnectionLimits_Acquire(t *testing.T) {
	limits := NewConnectionLimits(100, 10, 5.0, 5, clockwork.NewFakeClock())

	ok, reason := limits.Acquire("192.168.1.1")
	assert.True(t, ok)
	assert.Equal(t, LimitReason(""), reason)
	assert.Equal(t, int64(1), limits.Global().Current())
	assert.Equal(t, 1, limits.PerIP().Count("192.168.1.1"))

	limits.Release("192.168.1.1")
	assert.Equal(t, int64(0), limits.Global().Current())
	assert.Equal(t, 0, limits.PerIP().UniqueIPs())
}

func TestConnectionLimits_Reasons(t *testing.T) {
	t.Run("rate", func(t *testing.T) {
		limits := NewConnectionLimits(100, 10, 0.001, 1, clockwork.NewFakeClock())
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)

		ok, reason := limits.Acquire("10.0.0.1")
		assert.False(t, ok)
		assert.Equal(t, LimitReasonRate, reason)
	})

	t.Run("global", func(t *testing.T) {
		limits := NewConnectionLimits(1, 10, 100, 100, clockwork.NewFakeClock())
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)

		ok, reason := limits.Acquire("10.0.0.2")
		assert.False(t, ok)
		assert.Equal(t, LimitReasonGlobal, reason)
	})

	t.Run("per ip rolls back global", func(t *testing.T) {
		limits := NewConnectionLimits(10, 1, 100, 100, clockwork.NewFakeClock())
		ok, _ := limits.Acquire("10.0.0.1")
		assert.True(t, ok)

		ok, reason := limits.Acquire("10.0.0.1")
		assert.False(t, ok)
		assert.Equal(t, LimitReasonPerIP, reason)
		assert.Equal(t, int64(1), limits.Global().Current())
	})
}
