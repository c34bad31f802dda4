package promotion

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Kind selects how the discount value is interpreted.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFlat       Kind = "flat"
)

// Promotion unifies flat coupons and percentage offers. UsageCount only moves
// through the usage ledger.
type Promotion struct {
	ID             string           `json:"id"`
	Code           string           `json:"code"`
	Title          string           `json:"title,omitempty"`
	Description    string           `json:"description,omitempty"`
	Kind           Kind             `json:"discountKind"`
	Value          decimal.Decimal  `json:"discountValue"`
	MaxDiscountCap *decimal.Decimal `json:"maxDiscountCap,omitempty"`
	MinOrderValue  decimal.Decimal  `json:"minOrderValue"`
	ValidFrom      time.Time        `json:"validFrom"`
	ValidUntil     time.Time        `json:"validUntil"`
	UsageLimit     *int             `json:"usageLimit,omitempty"`
	UsageCount     int              `json:"usageCount"`
	IsActive       bool             `json:"isActive"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Result is the outcome of a successful evaluation.
type Result struct {
	PromotionID string          `json:"promotionId"`
	Code        string          `json:"code"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"finalAmount"`
}

// NormalizeCode canonicalises a user-supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the administrative rules of a promotion definition.
func (p Promotion) Validate() error {
	if NormalizeCode(p.Code) == "" {
		return errors.New("code is required")
	}
	switch p.Kind {
	case KindPercentage:
		if !p.Value.IsPositive() || p.Value.GreaterThan(decimal.NewFromInt(100)) || !p.Value.Equal(p.Value.Truncate(0)) {
			return errors.New("percentage discount must be a whole number in (0, 100]")
		}
		if p.MaxDiscountCap != nil && !p.MaxDiscountCap.IsPositive() {
			return errors.New("maxDiscountCap must be positive")
		}
	case KindFlat:
		if !p.Value.IsPositive() {
			return errors.New("flat discount must be positive")
		}
		if p.MaxDiscountCap != nil {
			return errors.New("maxDiscountCap is only valid for percentage promotions")
		}
	default:
		return errors.New("discountKind must be percentage or flat")
	}
	if p.MinOrderValue.IsNegative() {
		return errors.New("minOrderValue must not be negative")
	}
	if !p.ValidUntil.After(p.ValidFrom) {
		return errors.New("validUntil must be after validFrom")
	}
	if p.UsageLimit != nil && *p.UsageLimit <= 0 {
		return errors.New("usageLimit must be positive")
	}
	if p.UsageCount < 0 {
		return errors.New("usageCount must not be negative")
	}
	return nil
}

// Exhausted reports whether the usage cap has been reached.
func (p Promotion) Exhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

// Evaluate decides eligibility of p for a cart subtotal at now and computes the
// discount. Checks short-circuit in order: active flag, window, usage cap,
// minimum order value. It never changes UsageCount.
func Evaluate(p *Promotion, subtotal decimal.Decimal, now time.Time) (Result, error) {
	if p == nil {
		return Result{}, notFound("")
	}
	if !p.IsActive {
		return Result{}, NewError(ErrInactive, "this offer is no longer available")
	}
	if now.Before(p.ValidFrom) {
		return Result{}, NewError(ErrNotStarted, "this offer has not started yet")
	}
	if now.After(p.ValidUntil) {
		return Result{}, NewError(ErrExpired, "this offer has expired")
	}
	if p.Exhausted() {
		return Result{}, NewError(ErrLimitReached, "this offer has been fully redeemed")
	}
	if subtotal.LessThan(p.MinOrderValue) {
		return Result{}, belowMinimum(p.MinOrderValue.Sub(subtotal))
	}

	discount := Compute(*p, subtotal)
	return Result{
		PromotionID: p.ID,
		Code:        p.Code,
		Discount:    pricing.Round2(discount),
		FinalAmount: pricing.Round2(subtotal.Sub(discount)),
	}, nil
}

// Compute returns the raw discount of p on subtotal, capped for percentage
// promotions and never larger than the subtotal.
func Compute(p Promotion, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch p.Kind {
	case KindPercentage:
		discount = subtotal.Mul(p.Value).Div(decimal.NewFromInt(100))
		if p.MaxDiscountCap != nil && discount.GreaterThan(*p.MaxDiscountCap) {
			discount = *p.MaxDiscountCap
		}
	case KindFlat:
		discount = p.Value
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return pricing.NonNegative(discount)
}
