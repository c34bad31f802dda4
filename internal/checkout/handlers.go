package checkout

import (
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/lock"
)

// Handler exposes POST /checkout.
type Handler struct {
	Svc *Service
}

// Checkout places an order from the authenticated customer's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	// the body is optional
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.Place(r.Context(), customerID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, o)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart is empty", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	default:
		common.WriteError(w, r, err)
	}
}
