package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("resto", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Delete("/api/v1/cart/items/{lineId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"line-1", "line-2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodDelete, "/api/v1/cart/items/{lineId}", "204")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, obs.UnmatchedRoute, "404")))
	require.Equal(t, 2, testutil.CollectAndCount(metrics.Latency))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("resto", nil, registry)
	second := obs.NewHTTPMetrics("resto", nil, registry)
	require.Same(t, first.Requests, second.Requests)
}

func TestParseBuckets(t *testing.T) {
	got, err := obs.ParseBuckets(" 250, 10,50,10 ")
	require.NoError(t, err)
	require.Equal(t, []float64{10, 50, 250}, got)

	got, err = obs.ParseBuckets("")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = obs.ParseBuckets("10,-5")
	require.Error(t, err)
	_, err = obs.ParseBuckets("fast")
	require.Error(t, err)
}

func TestStatusRecorder(t *testing.T) {
	rec := obs.NewStatusRecorder(httptest.NewRecorder())
	require.Equal(t, http.StatusOK, rec.Status())

	rec.WriteHeader(http.StatusConflict)
	rec.WriteHeader(http.StatusInternalServerError)
	_, err := rec.Write([]byte(`{"error":"PROMOTION_JUST_REDEEMED"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, rec.Status())
	require.EqualValues(t, 35, rec.BytesWritten())
}
