package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerCarriesScopedFields(t *testing.T) {
	var buf bytes.Buffer
	rl := RequestLogger{Logger: zerolog.New(&buf)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, rl.Middleware)
	r.Post("/api/v1/cart/promotion", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("customer_id", "cust-9")
		})
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/promotion", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "cust-9", entry["customer_id"])
	require.Equal(t, "/api/v1/cart/promotion", entry["route"])
	require.EqualValues(t, http.StatusUnprocessableEntity, entry["status"])
	require.NotEmpty(t, entry["request_id"])
}

func TestRequestLoggerLevels(t *testing.T) {
	cases := []struct {
		path   string
		status int
		level  string
	}{
		{"/api/v1/menu", http.StatusOK, "info"},
		{"/health/ready", http.StatusOK, "debug"},
		{"/health/ready", http.StatusServiceUnavailable, "error"},
		{"/api/v1/checkout", http.StatusConflict, "warn"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		rl := RequestLogger{Logger: zerolog.New(&buf), Quiet: []string{"/health", "/metrics"}}
		h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, tc.level, entry["level"], "%s %d", tc.path, tc.status)
		require.Equal(t, UnmatchedRoute, entry["route"])
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, NewLogger("json", "chatty").GetLevel())
	require.Equal(t, zerolog.DebugLevel, NewLogger("console", " DEBUG ").GetLevel())
}
