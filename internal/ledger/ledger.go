// Package ledger owns the usage count of promotions. It is the only writer of
// promotions.usage_count and guarantees the count never exceeds the limit, no
// matter how many checkouts race for the last redemption.
package ledger

import (
	"context"
	"errors"

	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/promotion"
)

// Usage is the state of a promotion right after a successful consume.
type Usage struct {
	Count int
	Limit *int
}

// Exhausted reports whether the consume just used the last redemption.
func (u Usage) Exhausted() bool {
	return u.Limit != nil && u.Count >= *u.Limit
}

// Ledger atomically checks and increments a promotion's usage count.
type Ledger interface {
	Consume(ctx context.Context, promotionID string) (Usage, error)
}

// TryConsume consumes one redemption and discards the resulting usage.
func TryConsume(ctx context.Context, l Ledger, promotionID string) error {
	_, err := l.Consume(ctx, promotionID)
	return err
}

func limitReached() error {
	return promotion.NewError(promotion.ErrLimitReached, "this offer has been fully redeemed")
}

func notFound() error {
	return promotion.NewError(promotion.ErrNotFound, "promotion does not exist")
}

func record(err error) {
	switch {
	case err == nil:
		obs.CountPromotionRedemption("consumed")
	case errors.Is(err, promotion.ErrLimitReached):
		obs.CountPromotionRedemption("limit_reached")
	case errors.Is(err, promotion.ErrNotFound):
		obs.CountPromotionRedemption("not_found")
	default:
		obs.CountPromotionRedemption("error")
	}
}
