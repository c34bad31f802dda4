package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/resilience"
)

var errTransient = errors.New("transient")

func TestPolicyRetriesTransientErrors(t *testing.T) {
	resilience.RetryAttempts.Reset()
	policy := resilience.Policy{
		Target:      "ledger",
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, errTransient) },
	}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.RetryAttempts.WithLabelValues("ledger")))
}

func TestPolicyStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	policy := resilience.Policy{MaxAttempts: 5, BaseBackoff: time.Millisecond, Retryable: func(err error) bool { return errors.Is(err, errTransient) }}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	policy := resilience.Policy{MaxAttempts: 2, BaseBackoff: time.Millisecond, Retryable: func(error) bool { return true }}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	require.Equal(t, 2, calls)

	calls = 0
	err = policy.Once().Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	require.Equal(t, 1, calls)
}

func TestPolicyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := resilience.Policy{MaxAttempts: 5, BaseBackoff: time.Second, Retryable: func(error) bool { return true }}

	err := policy.Do(ctx, func(context.Context) error {
		cancel()
		return errTransient
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDoublesWithinJitter(t *testing.T) {
	base := 20 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, 80*time.Millisecond, resilience.Backoff(base, 3, 0))

	for i := 0; i < 50; i++ {
		d := resilience.Backoff(base, 2, 0.2)
		require.GreaterOrEqual(t, d, 32*time.Millisecond)
		require.LessOrEqual(t, d, 48*time.Millisecond)
	}
}
