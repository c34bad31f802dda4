package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	Key  func(*http.Request) string
	Rate limiter.Rate
}

// Handler enforces rate limits before delegating to the next handler.
type Handler struct {
	Store   limiter.Store
	Config  Config
	OnError func(error)

	limiter *limiter.Limiter
}

// New builds a Handler around store using a ulule formatted rate such as "20-M".
func New(store limiter.Store, formatted string, key func(*http.Request) string) (Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return Handler{}, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	if key == nil {
		key = CustomerOrIP
	}
	h := Handler{Store: store, Config: Config{Key: key, Rate: rate}}
	h.limiter = limiter.New(store, rate)
	return h, nil
}

// NewRedisStore returns a limiter store backed by Redis.
func NewRedisStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// NewMemoryStore returns a process-local limiter store.
func NewMemoryStore(prefix string) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
}

// CustomerOrIP keys requests by the authenticated customer, falling back to the client address.
func CustomerOrIP(r *http.Request) string {
	if id, ok := common.CustomerID(r.Context()); ok {
		return "customer:" + id
	}
	return "ip:" + common.ClientIP(r)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	lim := h.limiter
	if lim == nil && h.Store != nil {
		lim = limiter.New(h.Store, h.Config.Rate)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil || lim == nil {
			next.ServeHTTP(w, r)
			return
		}
		result, err := lim.Get(r.Context(), h.Config.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if result.Reached {
			retryAfter := int(time.Until(time.Unix(result.Reset, 0)).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
