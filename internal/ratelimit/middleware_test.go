package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "ratelimit")
	require.NoError(t, err)
	handler, err := New(store, "1-M", func(*http.Request) string { return "static" })
	require.NoError(t, err)

	counted := handler.Middleware(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/promotions/preview", nil)

	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr2.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")
}

func TestHandlerMiddlewareKeysByCustomer(t *testing.T) {
	handler, err := New(NewMemoryStore("test"), "1-H", nil)
	require.NoError(t, err)
	counted := handler.Middleware(okHandler())

	send := func(customer string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/promotion", nil)
		req = req.WithContext(common.WithCustomerID(req.Context(), customer))
		rr := httptest.NewRecorder()
		counted.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, send("alice"))
	require.Equal(t, http.StatusTooManyRequests, send("alice"))
	require.Equal(t, http.StatusOK, send("bob"))
}

func TestCustomerOrIPFallsBackToAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:40000"
	require.Equal(t, "ip:203.0.113.9", CustomerOrIP(req))

	req = req.WithContext(common.WithCustomerID(req.Context(), "c-1"))
	require.Equal(t, "customer:c-1", CustomerOrIP(req))
}

func TestNewRejectsMalformedRate(t *testing.T) {
	_, err := New(NewMemoryStore("test"), "twenty per minute", nil)
	require.Error(t, err)
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, "ratelimit")
	require.NoError(t, err)
	handler, err := New(store, "1-S", func(*http.Request) string { return "err" })
	require.NoError(t, err)
	mr.Close()

	called := false
	handler.OnError = func(error) { called = true }

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}
