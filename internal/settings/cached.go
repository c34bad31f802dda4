package settings

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/cache"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/resilience"
)

const cacheKey = "current"

// Cached fronts a Source with a Redis cache. Updates invalidate the cached
// copy. When Redis keeps failing the breaker opens and reads go straight to the
// source.
type Cached struct {
	Source  Source
	Cache   *cache.Cache
	Breaker *resilience.Breaker
	// Timeout bounds each call to the source. Zero means no limit.
	Timeout time.Duration
}

// Current returns the cached settings, loading them from the source on a miss.
func (c *Cached) Current(ctx context.Context) (pricing.Settings, error) {
	if c.Source == nil {
		return pricing.Settings{}, errors.New("settings source not configured")
	}
	var s pricing.Settings
	if c.cacheUsable(ctx) {
		ok, err := c.Cache.GetJSON(ctx, cacheKey, &s)
		c.report(ctx, err)
		if err == nil && ok {
			return s, nil
		}
	}
	s, err := c.sourceCurrent(ctx)
	if err != nil {
		return pricing.Settings{}, err
	}
	if c.cacheUsable(ctx) {
		c.report(ctx, c.Cache.SetJSON(ctx, cacheKey, s))
	}
	return s, nil
}

// Update writes through to the source and drops the cached copy.
func (c *Cached) Update(ctx context.Context, in pricing.Settings) (pricing.Settings, error) {
	if c.Source == nil {
		return pricing.Settings{}, errors.New("settings source not configured")
	}
	sctx, cancel := c.bounded(ctx)
	out, err := c.Source.Update(sctx, in)
	cancel()
	if err != nil {
		return pricing.Settings{}, err
	}
	if c.Cache.Enabled() {
		// invalidate regardless of breaker state
		c.report(ctx, c.Cache.Delete(ctx, cacheKey))
	}
	return out, nil
}

func (c *Cached) sourceCurrent(ctx context.Context) (pricing.Settings, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	return c.Source.Current(ctx)
}

func (c *Cached) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func (c *Cached) cacheUsable(ctx context.Context) bool {
	if !c.Cache.Enabled() {
		return false
	}
	return c.Breaker == nil || c.Breaker.Allow(ctx)
}

func (c *Cached) report(ctx context.Context, err error) {
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("settings cache unavailable")
	}
	if c.Breaker != nil {
		c.Breaker.Report(ctx, err == nil)
	}
}
