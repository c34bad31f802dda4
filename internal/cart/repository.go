package cart

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// ErrNotFound indicates the customer has no stored cart.
var ErrNotFound = errors.New("cart not found")

// Repository persists one cart per customer.
type Repository interface {
	Get(ctx context.Context, customerID string) (pricing.Cart, error)
	Save(ctx context.Context, c pricing.Cart) error
	Delete(ctx context.Context, customerID string) error
	// PurgeExpired removes carts whose expiry is before now and returns how many
	// were deleted.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
