package promotion

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
)

// AdminStore is the persistence surface used by the admin handlers.
type AdminStore interface {
	Reader
	Create(ctx context.Context, p Promotion) (Promotion, error)
	Update(ctx context.Context, p Promotion) (Promotion, error)
	SetActive(ctx context.Context, id string, active bool) (Promotion, error)
	List(ctx context.Context, f ListFilter) ([]Promotion, error)
}

// Handler exposes promotion management and preview endpoints.
type Handler struct {
	Store AdminStore
	Svc   *Service
}

type promotionPayload struct {
	Code           string           `json:"code" validate:"required,max=32"`
	Title          string           `json:"title" validate:"max=120"`
	Description    string           `json:"description" validate:"max=500"`
	Kind           string           `json:"discountKind" validate:"required,oneof=percentage flat"`
	Value          decimal.Decimal  `json:"discountValue"`
	MaxDiscountCap *decimal.Decimal `json:"maxDiscountCap"`
	MinOrderValue  decimal.Decimal  `json:"minOrderValue"`
	ValidFrom      time.Time        `json:"validFrom" validate:"required"`
	ValidUntil     time.Time        `json:"validUntil" validate:"required"`
	UsageLimit     *int             `json:"usageLimit" validate:"omitempty,gt=0"`
	IsActive       *bool            `json:"isActive"`
}

func (p promotionPayload) toPromotion() Promotion {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return Promotion{
		Code:           NormalizeCode(p.Code),
		Title:          strings.TrimSpace(p.Title),
		Description:    strings.TrimSpace(p.Description),
		Kind:           Kind(p.Kind),
		Value:          p.Value,
		MaxDiscountCap: p.MaxDiscountCap,
		MinOrderValue:  p.MinOrderValue,
		ValidFrom:      p.ValidFrom,
		ValidUntil:     p.ValidUntil,
		UsageLimit:     p.UsageLimit,
		IsActive:       active,
	}
}

type previewRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Create handles POST /admin/promotions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return
	}
	var payload promotionPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, r, err)
		return
	}
	p := payload.toPromotion()
	if err := p.Validate(); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
		return
	}
	created, err := h.Store.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Update handles PUT /admin/promotions/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var payload promotionPayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, r, err)
		return
	}
	p := payload.toPromotion()
	p.ID = id
	if err := p.Validate(); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
		return
	}
	updated, err := h.Store.Update(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// Deactivate handles POST /admin/promotions/{id}/deactivate.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return
	}
	p, err := h.Store.SetActive(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// Get handles GET /admin/promotions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return
	}
	p, err := h.Store.GetByID(r.Context(), strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, p)
}

// List handles GET /admin/promotions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.Store.List(r.Context(), ListFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       rows,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(rows)},
	})
}

// Preview handles POST /promotions/preview. It evaluates a code against an
// arbitrary subtotal without touching the usage count.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promotion service not configured", nil)
		return
	}
	var req previewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if req.Subtotal.IsNegative() {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "subtotal must not be negative", nil)
		return
	}
	result, err := h.Svc.Evaluate(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrCodeTaken):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "promotion code already exists", nil)
	case errors.Is(err, ErrLimitBelowUsage):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
	default:
		var perr *Error
		if errors.As(err, &perr) {
			common.WriteError(w, r, perr)
			return
		}
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, CodeNotFound, "promotion not found", nil)
			return
		}
		common.WriteError(w, r, err)
	}
}
