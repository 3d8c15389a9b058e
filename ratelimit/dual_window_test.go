/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-corekit/log/logtest"
	"github.com/acronis/go-corekit/testutil"
)

// testClock is a manually advanced clock for deterministic window math.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, sustained, burst Rate, opts DualWindowOpts) (*DualWindowLimiter, *testClock) {
	t.Helper()
	limiter, err := NewDualWindowLimiterWithOpts(sustained, burst, opts)
	require.NoError(t, err)
	clock := newTestClock()
	limiter.timeNow = clock.Now
	return limiter, clock
}

func TestDualWindowLimiterCheck(t *testing.T) {
	sustained := Rate{Count: 10, Window: time.Minute}
	burst := Rate{Count: 5, Window: 10 * time.Second}

	t.Run("burst window is checked first", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, sustained, burst, DualWindowOpts{})

		for i := 0; i < burst.Count; i++ {
			decision := limiter.Check("client-1")
			require.True(t, decision.Allowed, "request %d should be allowed", i+1)
			require.Equal(t, sustained.Count-(i+1), decision.Remaining)
			require.Equal(t, sustained.Count, decision.Limit)
			require.Equal(t, clock.Now().Add(sustained.Window), decision.Reset)
		}

		decision := limiter.Check("client-1")
		require.False(t, decision.Allowed)
		require.Equal(t, burst.Window, decision.RetryAfter)
		require.Equal(t, 0, decision.Remaining)
		require.Equal(t, sustained.Count, decision.Limit)
		require.Equal(t, clock.Now().Add(burst.Window), decision.Reset)
	})

	t.Run("denied request is not recorded", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, sustained, burst, DualWindowOpts{})

		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed)
		}
		for i := 0; i < 3; i++ {
			require.False(t, limiter.Check("client-1").Allowed)
		}

		// Once the burst window passes, the full burst quota is available again:
		// the denied attempts above left no trace.
		clock.Advance(burst.Window + time.Millisecond)
		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed, "request %d should be allowed", i+1)
		}
	})

	t.Run("sustained window denies after burst quota recovers", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, sustained, burst, DualWindowOpts{})

		// Two bursts of 5 exhaust the sustained limit of 10.
		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed)
		}
		clock.Advance(burst.Window + time.Millisecond)
		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed)
		}

		// Burst quota is free again after its window, but the sustained one is not.
		clock.Advance(burst.Window + time.Millisecond)
		decision := limiter.Check("client-1")
		require.False(t, decision.Allowed)

		// The oldest sustained timestamp leaves its window in a bit less than 40s.
		require.Equal(t, 40*time.Second, decision.RetryAfter)
	})

	t.Run("retry-after is rounded up to whole seconds", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, sustained, burst, DualWindowOpts{})

		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed)
		}
		clock.Advance(2500 * time.Millisecond)

		decision := limiter.Check("client-1")
		require.False(t, decision.Allowed)
		// Exact wait is 7.5s, reported as 8s.
		require.Equal(t, 8*time.Second, decision.RetryAfter)
		require.Equal(t, clock.Now().Add(7500*time.Millisecond), decision.Reset)
	})

	t.Run("clients are limited independently", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, sustained, burst, DualWindowOpts{})

		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed)
		}
		require.False(t, limiter.Check("client-1").Allowed)

		require.True(t, limiter.Check("client-2").Allowed)
		require.Equal(t, 2, limiter.ClientsCount())
	})

	t.Run("expired timestamps are pruned before deciding", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, sustained, burst, DualWindowOpts{})

		for i := 0; i < burst.Count; i++ {
			require.True(t, limiter.Check("client-1").Allowed)
		}
		clock.Advance(sustained.Window + time.Millisecond)

		decision := limiter.Check("client-1")
		require.True(t, decision.Allowed)
		require.Equal(t, sustained.Count-1, decision.Remaining, "old requests should not count against the quota")
	})

	t.Run("constructor validation", func(t *testing.T) {
		_, err := NewDualWindowLimiter(Rate{Count: 0, Window: time.Minute}, burst)
		require.EqualError(t, err, "sustained rate count must be greater than 0")

		_, err = NewDualWindowLimiter(sustained, Rate{Count: 5, Window: 0})
		require.EqualError(t, err, "burst rate window must be greater than 0")
	})
}

func TestDualWindowLimiterAllow(t *testing.T) {
	limiter, _ := newTestLimiter(t,
		Rate{Count: 10, Window: time.Minute}, Rate{Count: 2, Window: 10 * time.Second}, DualWindowOpts{})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allow, retryAfter, err := limiter.Allow(ctx, "client-1")
		require.NoError(t, err)
		require.True(t, allow)
		require.Equal(t, time.Duration(0), retryAfter)
	}

	allow, retryAfter, err := limiter.Allow(ctx, "client-1")
	require.NoError(t, err)
	require.False(t, allow)
	require.Equal(t, 10*time.Second, retryAfter)
}

func TestDualWindowLimiterCleanup(t *testing.T) {
	t.Run("idle client records are removed", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		limiter, clock := newTestLimiter(t,
			Rate{Count: 10, Window: time.Minute}, Rate{Count: 5, Window: 10 * time.Second},
			DualWindowOpts{Logger: logRecorder})

		require.True(t, limiter.Check("client-1").Allowed)
		require.True(t, limiter.Check("client-2").Allowed)
		require.Equal(t, 2, limiter.ClientsCount())

		limiter.cleanupIdleClients()
		require.Equal(t, 2, limiter.ClientsCount(), "active records should survive the cleanup")

		clock.Advance(time.Minute + time.Millisecond)
		limiter.cleanupIdleClients()
		require.Equal(t, 0, limiter.ClientsCount())

		_, found := logRecorder.FindEntry("cleaned up idle rate limiting records")
		require.True(t, found)
	})

	t.Run("periodic cleanup is driven by the context", func(t *testing.T) {
		limiter, clock := newTestLimiter(t,
			Rate{Count: 10, Window: 20 * time.Millisecond}, Rate{Count: 5, Window: 10 * time.Millisecond},
			DualWindowOpts{})

		require.True(t, limiter.Check("client-1").Allowed)
		clock.Advance(time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			limiter.RunPeriodicCleanup(ctx, 10*time.Millisecond)
		}()

		require.Eventually(t, func() bool {
			return limiter.ClientsCount() == 0
		}, time.Second, time.Millisecond)

		cancel()
		<-done
	})

	t.Run("owned cleanup is stopped by Close", func(t *testing.T) {
		limiter, err := NewDualWindowLimiterWithOpts(
			Rate{Count: 10, Window: time.Minute}, Rate{Count: 5, Window: 10 * time.Second},
			DualWindowOpts{CleanupInterval: 10 * time.Millisecond})
		require.NoError(t, err)

		require.True(t, limiter.Check("client-1").Allowed)
		limiter.Close()
		limiter.Close() // idempotent
	})
}

func TestDualWindowLimiterPrometheusMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()
	limiter, clock := newTestLimiter(t,
		Rate{Count: 10, Window: time.Minute}, Rate{Count: 2, Window: 10 * time.Second},
		DualWindowOpts{MetricsCollector: pm})

	require.True(t, limiter.Check("client-1").Allowed)
	require.True(t, limiter.Check("client-1").Allowed)
	require.False(t, limiter.Check("client-1").Allowed)
	require.True(t, limiter.Check("client-2").Allowed)

	testutil.RequireSamplesCountInCounter(t, pm.AllowedTotal.With(nil), 3)
	testutil.RequireSamplesCountInCounter(t, pm.DeniedTotal.With(nil), 1)
	testutil.RequireValueInGauge(t, pm.ClientsAmount.With(nil), 2)

	clock.Advance(time.Hour)
	limiter.cleanupIdleClients()
	testutil.RequireValueInGauge(t, pm.ClientsAmount.With(nil), 0)
}

func TestDualWindowLimiterConcurrentAccess(t *testing.T) {
	// 10 goroutines share a quota of 50, so exactly 50 of the 100 requests pass.
	limiter, err := NewDualWindowLimiter(
		Rate{Count: 50, Window: time.Minute}, Rate{Count: 50, Window: time.Minute})
	require.NoError(t, err)

	const numGoroutines = 10
	const numRequests = 10

	var allowedCount atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for g := 0; g < numGoroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < numRequests; i++ {
				if limiter.Check("client-1").Allowed {
					allowedCount.Inc()
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(50), allowedCount.Load())
	require.Equal(t, 1, limiter.ClientsCount())
}
