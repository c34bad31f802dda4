package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/common"
)

func TestMiddleware(t *testing.T) {
	v := testVerifier()
	mw := Middleware{Verifier: v}

	var seen string
	protected := mw.RequireCustomer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.CustomerID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	admin := mw.RequireCustomer(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	call := func(h http.Handler, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	customerToken, err := v.Issue("cust-1", RoleCustomer, time.Minute)
	require.NoError(t, err)
	adminToken, err := v.Issue("staff-1", RoleAdmin, time.Minute)
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, call(protected, ""))
	require.Equal(t, http.StatusUnauthorized, call(protected, "garbage"))
	require.Equal(t, http.StatusNoContent, call(protected, customerToken))
	require.Equal(t, "cust-1", seen)

	require.Equal(t, http.StatusForbidden, call(admin, customerToken))
	require.Equal(t, http.StatusNoContent, call(admin, adminToken))
}
