// Package settings provides the restaurant-wide pricing parameters. There is
// exactly one settings record; it is created with defaults on first access and
// every cart recompute reads the current value.
package settings

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Provider returns the settings in force right now.
type Provider interface {
	Current(ctx context.Context) (pricing.Settings, error)
}

// Source is a Provider that can also be written.
type Source interface {
	Provider
	Update(ctx context.Context, s pricing.Settings) (pricing.Settings, error)
}

// Defaults returns the settings used when none have been stored.
func Defaults() pricing.Settings {
	return pricing.Settings{
		TaxRate:               decimal.RequireFromString("8.5"),
		DeliveryFee:           decimal.NewFromInt(40),
		FreeDeliveryThreshold: decimal.NewFromInt(2490),
	}
}

// InvalidError reports a rejected settings update.
type InvalidError struct {
	Field   string
	Message string
}

func (e *InvalidError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

func (e *InvalidError) ProblemCode() string { return "VALIDATION_FAILED" }
func (e *InvalidError) ProblemStatus() int  { return http.StatusUnprocessableEntity }
func (e *InvalidError) ProblemDetails() any { return map[string]string{"field": e.Field} }

// Validate checks the ranges of s.
func Validate(s pricing.Settings) error {
	if s.TaxRate.IsNegative() || s.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return &InvalidError{Field: "taxRate", Message: "must be between 0 and 100"}
	}
	if s.DeliveryFee.IsNegative() {
		return &InvalidError{Field: "deliveryFee", Message: "must not be negative"}
	}
	if s.FreeDeliveryThreshold.IsNegative() {
		return &InvalidError{Field: "freeDeliveryThreshold", Message: "must not be negative"}
	}
	return nil
}
