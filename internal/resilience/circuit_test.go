package resilience_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/resilience"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCacheBreaker(t *testing.T, target string) (*resilience.Breaker, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	b := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       target,
		MinCalls:     4,
		FailureRatio: 0.5,
		CoolOff:      30 * time.Second,
		Now:          clock.Now,
	})
	return b, clock
}

func TestBreakerStaysClosedWhileCacheMostlyAnswers(t *testing.T) {
	b, _ := newCacheBreaker(t, "settings_cache_flaky")
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.True(t, b.Allow(ctx))
		b.Report(ctx, i%4 != 0)
	}
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerOpensWhenCacheKeepsFailing(t *testing.T) {
	b, clock := newCacheBreaker(t, "settings_cache_down")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.True(t, b.Allow(ctx))
		b.Report(ctx, false)
	}
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx), "reads should skip redis while open")

	clock.Advance(29 * time.Second)
	require.False(t, b.Allow(ctx))

	clock.Advance(time.Second)
	require.True(t, b.Allow(ctx), "one trial read after the cool-off")
	require.Equal(t, resilience.HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "only one trial at a time")

	b.Report(ctx, false)
	require.Equal(t, resilience.Open, b.State())
	require.False(t, b.Allow(ctx))

	clock.Advance(30 * time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, resilience.Closed, b.State())
	require.True(t, b.Allow(ctx))
}

func TestBreakerMetrics(t *testing.T) {
	const target = "settings_cache_metrics"
	b, clock := newCacheBreaker(t, target)
	ctx := context.Background()

	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))
	for i := 0; i < 4; i++ {
		b.Allow(ctx)
		b.Report(ctx, false)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))

	clock.Advance(time.Minute)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))
	b.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues(target)))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, "half_open", "closed")))
}
