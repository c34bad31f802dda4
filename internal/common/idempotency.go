package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/obs"
)

// IdempotencyHeader makes a write safe to resend.
const IdempotencyHeader = "Idempotency-Key"

const (
	maxIdempotencyKey = 255
	idemPending       = "pending"
)

// Idempotency rejects a second write that carries the same Idempotency-Key
// from the same customer on the same path. The key is held while the first
// request runs. It is kept for TTL once that request answered below 500, and
// released after a server error or panic so the client can retry.
type Idempotency struct {
	Redis  *redis.Client
	TTL    time.Duration
	Prefix string
}

func (i Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if raw == "" || i.Redis == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(raw) > maxIdempotencyKey {
			JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Idempotency-Key is too long", map[string]any{"maxLength": maxIdempotencyKey})
			return
		}
		ctx := r.Context()
		key := i.key(r, raw)
		ok, err := i.Redis.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("idempotency store unavailable")
			JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "cannot verify Idempotency-Key right now", nil)
			return
		}
		if !ok {
			i.rejectReplay(w, r, key)
			return
		}

		rec := obs.NewStatusRecorder(w)
		completed := false
		defer func() { i.settle(key, rec.Status(), completed) }()
		next.ServeHTTP(rec, r)
		completed = true
	})
}

func (i Idempotency) rejectReplay(w http.ResponseWriter, r *http.Request, key string) {
	state, err := i.Redis.Get(r.Context(), key).Result()
	if err == nil && state == idemPending {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this Idempotency-Key is still running", nil)
		return
	}
	var details any
	if status, err := strconv.Atoi(state); err == nil {
		details = map[string]any{"originalStatus": status}
	}
	JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", details)
}

// settle runs on a fresh context: the request context may already be cancelled.
func (i Idempotency) settle(key string, status int, completed bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !completed || status >= http.StatusInternalServerError {
		_ = i.Redis.Del(ctx, key).Err()
		return
	}
	_ = i.Redis.Set(ctx, key, strconv.Itoa(status), i.ttl()).Err()
}

func (i Idempotency) key(r *http.Request, raw string) string {
	scope, _ := CustomerID(r.Context())
	sum := sha256.Sum256([]byte(scope + "\x00" + r.URL.Path + "\x00" + raw))
	prefix := i.Prefix
	if prefix == "" {
		prefix = "idem"
	}
	return prefix + ":" + hex.EncodeToString(sum[:])
}

func (i Idempotency) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}
