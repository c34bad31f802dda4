package order

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Reader is the query surface the handlers need.
type Reader interface {
	Get(ctx context.Context, customerID, id string) (Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int, error)
	List(ctx context.Context, limit, offset int) ([]Order, int, error)
}

// Handler exposes the customer's order history.
type Handler struct {
	Orders Reader
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := pagination(r)
	orders, total, err := h.Orders.ListByCustomer(r.Context(), customerID, perPage, (page-1)*perPage)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeList(w, orders, total, page, perPage)
}

// Get handles GET /orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	customerID, ok := common.CustomerID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	o, err := h.Orders.Get(r.Context(), customerID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.WriteError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

// AdminHandler lists orders across customers for staff.
type AdminHandler struct {
	Orders Reader
}

// List handles GET /admin/orders.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	page, perPage := pagination(r)
	orders, total, err := h.Orders.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	writeList(w, orders, total, page, perPage)
}

func pagination(r *http.Request) (int, int) {
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func writeList(w http.ResponseWriter, orders []Order, total, page, perPage int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": orders,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}
