package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
)

type notesPayload struct {
	Notes string `json:"notes"`
}

func checkoutLike(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notesPayload
		if err := common.DecodeJSON(r, &p); err != nil {
			common.WriteError(w, r, err)
			return
		}
		common.Data(w, http.StatusCreated, p)
	})
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	handler := BodyLimit{Max: 64}.Middleware(checkoutLike(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"notes":"ring twice"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), "ring twice")
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 16}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"notes":"leave it with the guard"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.False(t, called)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
	require.Contains(t, rr.Body.String(), `"maxBytes":16`)
}

func TestBodyLimitRejectsChunkedOverflow(t *testing.T) {
	handler := BodyLimit{Max: 16}.Middleware(checkoutLike(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", io.NopCloser(strings.NewReader(`{"notes":"leave it with the guard"}`)))
	req.ContentLength = -1
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestBodyLimitDisabled(t *testing.T) {
	handler := BodyLimit{}.Middleware(checkoutLike(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"notes":"`+strings.Repeat("x", 4096)+`"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
}
