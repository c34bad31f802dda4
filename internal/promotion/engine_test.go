package promotion

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func moneyPtr(s string) *decimal.Decimal {
	v := money(s)
	return &v
}

func newPromotion(kind Kind, value string) *Promotion {
	return &Promotion{
		ID:            "7f0c1a52-7d4e-4a43-9d1e-0c7a0e6d4f11",
		Code:          "SAVE",
		Kind:          kind,
		Value:         money(value),
		MinOrderValue: decimal.Zero,
		ValidFrom:     now.Add(-24 * time.Hour),
		ValidUntil:    now.Add(24 * time.Hour),
		IsActive:      true,
	}
}

func requireCode(t *testing.T, err error, sentinel error, code string) *Error {
	t.Helper()
	require.ErrorIs(t, err, sentinel)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, code, perr.Code)
	return perr
}

func TestEvaluatePercentageWithCap(t *testing.T) {
	p := newPromotion(KindPercentage, "20")
	p.MaxDiscountCap = moneyPtr("100")

	res, err := Evaluate(p, money("1000"), now)
	require.NoError(t, err)
	require.True(t, money("100").Equal(res.Discount), res.Discount.String())
	require.True(t, money("900").Equal(res.FinalAmount))
	require.Equal(t, p.ID, res.PromotionID)
}

func TestEvaluatePercentageUnderCap(t *testing.T) {
	p := newPromotion(KindPercentage, "15")
	p.MaxDiscountCap = moneyPtr("500")

	res, err := Evaluate(p, money("333.33"), now)
	require.NoError(t, err)
	require.True(t, money("50").Equal(res.Discount), res.Discount.String())
	require.True(t, money("283.33").Equal(res.FinalAmount), res.FinalAmount.String())
}

func TestEvaluateFlatClampedToSubtotal(t *testing.T) {
	p := newPromotion(KindFlat, "5000")

	res, err := Evaluate(p, money("300"), now)
	require.NoError(t, err)
	require.True(t, money("300").Equal(res.Discount))
	require.True(t, res.FinalAmount.IsZero())
}

func TestEvaluateBelowMinimumReportsShortfall(t *testing.T) {
	p := newPromotion(KindFlat, "100")
	p.MinOrderValue = money("500")

	_, err := Evaluate(p, money("400"), now)
	perr := requireCode(t, err, ErrBelowMinimum, CodeBelowMinimum)
	require.True(t, money("100").Equal(perr.Shortfall))
	require.Equal(t, map[string]string{"shortfall": "100.00"}, perr.ProblemDetails())
}

func TestEvaluateMinimumIsInclusive(t *testing.T) {
	p := newPromotion(KindFlat, "100")
	p.MinOrderValue = money("500")

	_, err := Evaluate(p, money("500"), now)
	require.NoError(t, err)
}

func TestEvaluateShortCircuitOrder(t *testing.T) {
	// Inactive wins over every later check.
	p := newPromotion(KindFlat, "100")
	p.IsActive = false
	p.ValidUntil = now.Add(-time.Hour)
	p.UsageLimit = intPtr(1)
	p.UsageCount = 1
	p.MinOrderValue = money("1000")
	_, err := Evaluate(p, money("10"), now)
	requireCode(t, err, ErrInactive, CodeInactive)

	p.IsActive = true
	p.ValidFrom = now.Add(time.Hour)
	p.ValidUntil = now.Add(2 * time.Hour)
	_, err = Evaluate(p, money("10"), now)
	requireCode(t, err, ErrNotStarted, CodeNotStarted)

	p.ValidFrom = now.Add(-2 * time.Hour)
	p.ValidUntil = now.Add(-time.Hour)
	_, err = Evaluate(p, money("10"), now)
	requireCode(t, err, ErrExpired, CodeExpired)

	p.ValidUntil = now.Add(time.Hour)
	_, err = Evaluate(p, money("10"), now)
	requireCode(t, err, ErrLimitReached, CodeLimitReached)

	p.UsageCount = 0
	_, err = Evaluate(p, money("10"), now)
	requireCode(t, err, ErrBelowMinimum, CodeBelowMinimum)
}

func TestEvaluateWindowBoundariesInclusive(t *testing.T) {
	p := newPromotion(KindFlat, "10")
	p.ValidFrom = now
	_, err := Evaluate(p, money("100"), now)
	require.NoError(t, err)

	p = newPromotion(KindFlat, "10")
	p.ValidUntil = now
	_, err = Evaluate(p, money("100"), now)
	require.NoError(t, err)
}

func TestEvaluateNilIsNotFound(t *testing.T) {
	_, err := Evaluate(nil, money("100"), now)
	requireCode(t, err, ErrNotFound, CodeNotFound)
}

func TestEvaluateDoesNotTouchUsage(t *testing.T) {
	p := newPromotion(KindFlat, "10")
	p.UsageLimit = intPtr(5)
	p.UsageCount = 2
	_, err := Evaluate(p, money("100"), now)
	require.NoError(t, err)
	require.Equal(t, 2, p.UsageCount)
}

func TestPromotionValidate(t *testing.T) {
	valid := newPromotion(KindPercentage, "10")
	require.NoError(t, valid.Validate())

	cases := map[string]func(p *Promotion){
		"missing code":         func(p *Promotion) { p.Code = " " },
		"percentage over 100":  func(p *Promotion) { p.Value = money("101") },
		"fractional percent":   func(p *Promotion) { p.Value = money("12.5") },
		"flat with cap":        func(p *Promotion) { p.Kind = KindFlat; p.MaxDiscountCap = moneyPtr("10") },
		"unknown kind":         func(p *Promotion) { p.Kind = "bogo" },
		"negative minimum":     func(p *Promotion) { p.MinOrderValue = money("-1") },
		"window inverted":      func(p *Promotion) { p.ValidUntil = p.ValidFrom },
		"zero usage limit":     func(p *Promotion) { p.UsageLimit = intPtr(0) },
		"non positive flat":    func(p *Promotion) { p.Kind = KindFlat; p.Value = decimal.Zero },
		"non positive cap":     func(p *Promotion) { p.MaxDiscountCap = moneyPtr("0") },
		"negative usage count": func(p *Promotion) { p.UsageCount = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := *newPromotion(KindPercentage, "10")
			mutate(&p)
			require.Error(t, p.Validate())
		})
	}
}
