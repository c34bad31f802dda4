package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/resilience"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultPollEvery = 50 * time.Millisecond
	// polling backs off to at most 8x the base interval
	maxPollDoublings = 4
)

// ErrNotAcquired is returned when the lock could not be taken before the wait
// budget or the context ran out.
var ErrNotAcquired = errors.New("lock: not acquired")

// CartKey is the lock key serialising mutations of one customer's cart.
func CartKey(customerID string) string {
	return "cart:lock:" + strings.TrimSpace(customerID)
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never frees a lock another instance has taken since.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a Redis lease lock shared by every API instance.
type Locker struct {
	R *redis.Client
	// RetryBackoff is the first polling interval while the key is held.
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls for a held key. Zero waits until
	// ctx is done.
	MaxWait time.Duration
}

// WithLock runs fn while holding key for at most ttl. The lease is released
// when fn returns, whatever its result.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer l.release(ctx, key, token)
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	waitCtx := ctx
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.MaxWait)
		defer cancel()
	}
	base := l.RetryBackoff
	if base <= 0 {
		base = defaultPollEvery
	}

	for attempt := 1; ; attempt++ {
		ok, err := l.R.SetNX(waitCtx, key, token, ttl).Result()
		switch {
		case ok:
			return nil
		case err != nil && ctx.Err() == nil && waitCtx.Err() != nil:
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case err != nil:
			return fmt.Errorf("lock: acquire %s: %w", key, err)
		}

		timer := time.NewTimer(resilience.Backoff(base, min(attempt, maxPollDoublings), 0.2))
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-timer.C:
		}
	}
}

// release runs detached from ctx so a cancelled request still frees its lease.
func (l Locker) release(ctx context.Context, key, token string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := releaseScript.Run(rctx, l.R, []string{key}, token).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("release lock failed; lease will expire")
	}
}
