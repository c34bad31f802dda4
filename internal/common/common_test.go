package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/menu?page=3&limit=1000", nil)
	page, perPage := ParsePagination(req, 50)
	require.Equal(t, 3, page)
	require.Equal(t, MaxPerPage, perPage)
	require.Equal(t, 2*MaxPerPage, Offset(page, perPage))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/menu?page=-1&limit=abc", nil)
	page, perPage = ParsePagination(req, 50)
	require.Equal(t, 1, page)
	require.Equal(t, 50, perPage)
}

func TestWriteErrorUsesProblemCode(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteError(rr, req, NewAppError("CART_BUSY", "cart is being updated", http.StatusConflict, nil))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), `"CART_BUSY"`)

	rr = httptest.NewRecorder()
	WriteError(rr, req, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "boom")
}

type addPayload struct {
	ProductRef string `json:"productRef" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productRef":"pz-1","quantity":2}`))
	var p addPayload
	require.NoError(t, DecodeJSON(req, &p))
	require.Equal(t, "pz-1", p.ProductRef)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":-1}`))
	err := DecodeJSON(req, &p)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.Equal(t, map[string]string{"productRef": "required", "quantity": "gte"}, appErr.Details.(map[string]any)["fields"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"productRef":"x","bogus":true}`))
	require.ErrorAs(t, DecodeJSON(req, &p), &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestIdempotencyRejectsReplayPerCustomer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := Idempotency{Redis: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(customer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.Header.Set(IdempotencyHeader, "abc")
		req = req.WithContext(WithCustomerID(context.Background(), customer))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, send("alice").Code)
	replay := send("alice")
	require.Equal(t, http.StatusConflict, replay.Code)
	require.Contains(t, replay.Body.String(), "IDEMPOTENT_REPLAY")
	require.Contains(t, replay.Body.String(), `"originalStatus":201`)
	require.Equal(t, http.StatusCreated, send("bob").Code)
	require.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusServiceUnavailable
	handler := Idempotency{Redis: client, TTL: time.Minute, Prefix: "resto:idem"}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.Header.Set(IdempotencyHeader, "retry-me")
		req = req.WithContext(WithCustomerID(req.Context(), "alice"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusServiceUnavailable, send())
	require.Empty(t, mr.Keys())

	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, send())
	require.Len(t, mr.Keys(), 1)
	require.True(t, strings.HasPrefix(mr.Keys()[0], "resto:idem:"))
	require.Equal(t, http.StatusConflict, send())
}

func TestIdempotencyReportsInFlightRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency{Redis: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, r.Clone(r.Context()))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set(IdempotencyHeader, "slow")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, http.StatusConflict, inner.Code)
	require.Contains(t, inner.Body.String(), "IDEMPOTENT_IN_PROGRESS")
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := Idempotency{Redis: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set(IdempotencyHeader, strings.Repeat("k", 300))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClientIPUsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "[::ffff:10.0.0.2]:443"
	require.Equal(t, "10.0.0.2", ClientIP(req))

	req.RemoteAddr = "10.0.0.3"
	require.Equal(t, "10.0.0.3", ClientIP(req))
}

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	Data(rr, http.StatusOK, map[string]string{"title": "Buy 1 & save"})
	require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"title":"Buy 1 & save"}}`, rr.Body.String())
	require.Contains(t, rr.Body.String(), "&")
}
