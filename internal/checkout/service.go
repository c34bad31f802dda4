package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/promotion"
)

// Input carries the optional checkout details.
type Input struct {
	Notes string `json:"notes" validate:"max=500"`
}

// Service turns a customer's cart into an order.
type Service struct {
	Carts      *cart.Service
	UnitOfWork UnitOfWork
	Events     *events.Bus
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Place prices the cart with fresh settings, re-checks the applied promotion,
// consumes one redemption and inserts the order in a single unit of work. The
// cart is emptied only when all of that commits.
func (s *Service) Place(ctx context.Context, customerID string, in Input) (placed order.Order, err error) {
	if s == nil || s.Carts == nil || s.UnitOfWork == nil {
		return order.Order{}, errors.New("checkout service not configured")
	}
	started := time.Now()
	defer func() {
		obs.ObserveCheckout(checkoutResult(err), float64(time.Since(started).Milliseconds()))
	}()
	ctx, span := obs.StartSpan(ctx, "checkout.place", attribute.String("customer.id", customerID))
	defer span.End()

	var exhausted bool
	err = s.Carts.Settle(ctx, customerID, func(ctx context.Context, c pricing.Cart) error {
		if len(c.Items) == 0 {
			return ErrEmptyCart
		}
		quoted, err := s.Carts.Quote(ctx, c)
		if err != nil {
			return err
		}
		o := order.FromCart(quoted, strings.TrimSpace(in.Notes), s.now())
		err = s.UnitOfWork.Run(ctx, func(ctx context.Context, tx Tx) error {
			exhausted = false
			if o.PromotionID != nil {
				usage, err := tx.Consume(ctx, *o.PromotionID)
				if err != nil {
					if errors.Is(err, promotion.ErrLimitReached) {
						return &ConcurrencyError{PromotionCode: *o.PromotionCode, err: err}
					}
					return err
				}
				exhausted = usage.Exhausted()
			}
			if err := tx.InsertOrder(ctx, o); err != nil {
				return err
			}
			return tx.DeleteCart(ctx, customerID)
		})
		if err != nil {
			var cerr *ConcurrencyError
			if errors.As(err, &cerr) {
				zerolog.Ctx(ctx).Warn().Str("customer_id", customerID).Str("promotion_code", cerr.PromotionCode).
					Msg("promotion redeemed by a concurrent checkout")
			}
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	s.emit(ctx, placed, exhausted)
	return placed, nil
}

func (s *Service) emit(ctx context.Context, o order.Order, exhausted bool) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"orderId":    o.ID,
		"customerId": o.CustomerID,
		"grandTotal": o.GrandTotal.StringFixed(2),
		"totalItems": o.TotalItems,
	}
	if o.PromotionCode != nil {
		payload["promotionCode"] = *o.PromotionCode
		payload["discount"] = o.Discount.StringFixed(2)
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderPlaced, o.ID, payload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Msg("emit order.placed failed")
	}
	if exhausted && o.PromotionID != nil {
		if _, err := s.Events.Emit(ctx, events.TopicPromotionExhausted, *o.PromotionID, map[string]any{
			"promotionId": *o.PromotionID,
			"code":        *o.PromotionCode,
			"lastOrderId": o.ID,
		}); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("promotion_id", *o.PromotionID).Msg("emit promotion.exhausted failed")
		}
	}
}

func checkoutResult(err error) string {
	var (
		cerr *ConcurrencyError
		perr *promotion.Error
		verr *pricing.ValidationError
	)
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &cerr):
		return "promotion_contended"
	case errors.As(err, &perr):
		return "promotion_rejected"
	case errors.As(err, &verr):
		return "invalid_cart"
	default:
		return "error"
	}
}
