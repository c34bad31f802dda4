package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-resto/internal/catalog"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/lock"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Handler wires cart services to HTTP. All routes act on the authenticated
// customer's cart.
type Handler struct {
	Svc      *Service
	Currency string
}

type addItemRequest struct {
	ProductRef          string   `json:"productRef" validate:"required"`
	Quantity            int      `json:"quantity"`
	Size                string   `json:"size" validate:"omitempty,oneof=small medium large"`
	Toppings            []string `json:"toppings" validate:"max=20,dive,required"`
	SpecialInstructions string   `json:"specialInstructions"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type applyPromotionRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// Get returns the priced cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), customerID)
	h.respond(w, r, view, err)
}

// AddItem handles POST /cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	view, err := h.Svc.AddItem(r.Context(), customerID, catalog.LineRequest{
		ProductRef:          strings.TrimSpace(req.ProductRef),
		Quantity:            req.Quantity,
		Size:                pricing.Size(req.Size),
		Toppings:            req.Toppings,
		SpecialInstructions: req.SpecialInstructions,
	})
	h.respond(w, r, view, err)
}

// UpdateItem handles PATCH /cart/items/{lineId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	view, err := h.Svc.UpdateQuantity(r.Context(), customerID, chi.URLParam(r, "lineId"), req.Quantity)
	h.respond(w, r, view, err)
}

// RemoveItem handles DELETE /cart/items/{lineId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.RemoveItem(r.Context(), customerID, chi.URLParam(r, "lineId"))
	h.respond(w, r, view, err)
}

// ApplyPromotion handles POST /cart/promotion.
func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	var req applyPromotionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	view, err := h.Svc.ApplyPromotion(r.Context(), customerID, req.Code)
	h.respond(w, r, view, err)
}

// RemovePromotion handles DELETE /cart/promotion.
func (h *Handler) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.RemovePromotion(r.Context(), customerID)
	h.respond(w, r, view, err)
}

// Clear handles DELETE /cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	customerID, ok := h.customer(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Clear(r.Context(), customerID)
	h.respond(w, r, view, err)
}

func (h *Handler) customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	id, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return id, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, view View, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view, "currency": h.Currency})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "LINE_NOT_FOUND", "cart line not found", nil)
	case errors.Is(err, catalog.ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "menu item not found", nil)
	case errors.Is(err, catalog.ErrItemUnavailable):
		common.JSONError(w, http.StatusConflict, "ITEM_UNAVAILABLE", "menu item is not available", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "CART_BUSY", "cart is being updated, retry shortly", nil)
	default:
		common.WriteError(w, r, err)
	}
}
