package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// Policy bounds how an operation is retried. The zero value runs the operation
// once.
type Policy struct {
	Target      string
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Retryable   func(error) bool
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts are
// exhausted or ctx is cancelled. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("resilience: retry callback not provided")
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	base := p.BaseBackoff
	if base <= 0 {
		base = 20 * time.Millisecond
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) || attempt == maxAttempts {
			return err
		}
		RetryAttempts.WithLabelValues(p.targetLabel()).Inc()
		timer := time.NewTimer(Backoff(base, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// Once returns a copy of p that never retries. Callers bound to an outer
// transaction use it so the retry happens at the transaction boundary.
func (p Policy) Once() Policy {
	p.MaxAttempts = 1
	return p
}

func (p Policy) targetLabel() string {
	trimmed := strings.TrimSpace(p.Target)
	if trimmed == "" {
		return "default"
	}
	return trimmed
}

// Backoff doubles base for every attempt after the first and spreads the result
// by up to jitter (a fraction, 0.2 is 20%) in either direction.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 20 * time.Millisecond
	}
	d := base << max(attempt-1, 0)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * min(jitter, 1)
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
