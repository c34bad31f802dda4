package settings

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Handler exposes the admin settings endpoints.
type Handler struct {
	Source Source
}

type updateRequest struct {
	TaxRate               *decimal.Decimal `json:"taxRate" validate:"required"`
	DeliveryFee           *decimal.Decimal `json:"deliveryFee" validate:"required"`
	FreeDeliveryThreshold *decimal.Decimal `json:"freeDeliveryThreshold" validate:"required"`
}

// Get handles GET /admin/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Source == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings not configured", nil)
		return
	}
	s, err := h.Source.Current(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, s)
}

// Update handles PUT /admin/settings. The change applies to every open cart on
// its next recompute.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Source == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings not configured", nil)
		return
	}
	var req updateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	in := pricing.Settings{
		TaxRate:               *req.TaxRate,
		DeliveryFee:           *req.DeliveryFee,
		FreeDeliveryThreshold: *req.FreeDeliveryThreshold,
	}
	if err := Validate(in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	out, err := h.Source.Update(r.Context(), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}
