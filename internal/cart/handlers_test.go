package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/common"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type cartBody struct {
	Data struct {
		Items []struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
		} `json:"items"`
		Subtotal        string `json:"subtotal"`
		GrandTotal      string `json:"grandTotal"`
		PromotionNotice *struct {
			Code string `json:"code"`
		} `json:"promotionNotice"`
	} `json:"data"`
	Currency string `json:"currency"`
}

func newCartRouter(t *testing.T) http.Handler {
	t.Helper()
	f := newFixture(t)
	h := &cart.Handler{Svc: f.svc, Currency: "INR"}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-Customer"); id != "" {
				req = req.WithContext(common.WithCustomerID(req.Context(), id))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{lineId}", h.UpdateItem)
		r.Delete("/items/{lineId}", h.RemoveItem)
		r.Post("/promotion", h.ApplyPromotion)
		r.Delete("/promotion", h.RemovePromotion)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-Customer", "cust-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCartHandlers(t *testing.T) {
	h := newCartRouter(t)

	t.Run("requires a customer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty cart", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/cart/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body cartBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Empty(t, body.Data.Items)
		require.Equal(t, "INR", body.Currency)
	})

	var lineID string
	t.Run("add item", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"productRef":"dr-cola","quantity":10}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body cartBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data.Items, 1)
		require.Equal(t, "900", body.Data.Subtotal)
		lineID = body.Data.Items[0].ID
	})

	t.Run("pizza without size", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"productRef":"pz-margherita","quantity":1}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
		require.Equal(t, "SIZE_REQUIRED_FOR_PIZZA", body.Error.Details["reason"])
	})

	t.Run("unknown size is rejected by payload validation", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/cart/items", `{"productRef":"pz-margherita","size":"huge"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("apply promotion", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/cart/promotion", `{"code":"save10"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body cartBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "926.5", body.Data.GrandTotal)
	})

	t.Run("shrinking below minimum detaches", func(t *testing.T) {
		rec := do(t, h, http.MethodPatch, "/api/v1/cart/items/"+lineID, `{"quantity":1}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body cartBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.NotNil(t, body.Data.PromotionNotice)
		require.Equal(t, "BELOW_MINIMUM", body.Data.PromotionNotice.Code)
	})

	t.Run("apply below minimum reports shortfall", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/cart/promotion", `{"code":"SAVE10"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "BELOW_MINIMUM", body.Error.Code)
		require.Equal(t, "410.00", body.Error.Details["shortfall"])
	})

	t.Run("unknown line", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/api/v1/cart/items/nope", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("clear", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/api/v1/cart/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body cartBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Empty(t, body.Data.Items)
	})
}
