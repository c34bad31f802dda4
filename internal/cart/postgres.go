package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// PostgresRepository stores carts in the carts table with the lines as JSONB.
type PostgresRepository struct {
	DB db.DBTX
}

// Get loads the cart of customerID.
func (r *PostgresRepository) Get(ctx context.Context, customerID string) (pricing.Cart, error) {
	var (
		c         pricing.Cart
		items     []byte
		promoID   *string
		promoCode *string
	)
	err := r.DB.QueryRow(ctx, `SELECT customer_id, items, applied_promotion_id::text, applied_promotion_code,
		total_items, subtotal, tax_amount, delivery_fee, discount, grand_total, updated_at, expires_at
		FROM carts WHERE customer_id = $1`, customerID).Scan(
		&c.CustomerID, &items, &promoID, &promoCode,
		&c.TotalItems, &c.Subtotal, &c.TaxAmount, &c.DeliveryFee, &c.Discount, &c.GrandTotal, &c.UpdatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Cart{}, ErrNotFound
		}
		return pricing.Cart{}, err
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return pricing.Cart{}, fmt.Errorf("decode cart items: %w", err)
	}
	if promoID != nil {
		c.AppliedPromotion = &pricing.AppliedPromotion{ID: *promoID}
		if promoCode != nil {
			c.AppliedPromotion.Code = *promoCode
		}
	}
	return c, nil
}

// Save upserts c.
func (r *PostgresRepository) Save(ctx context.Context, c pricing.Cart) error {
	items, err := json.Marshal(nonNilItems(c.Items))
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	var promoID, promoCode *string
	if c.AppliedPromotion != nil {
		promoID, promoCode = &c.AppliedPromotion.ID, &c.AppliedPromotion.Code
	}
	_, err = r.DB.Exec(ctx, `INSERT INTO carts (customer_id, items, applied_promotion_id, applied_promotion_code,
		total_items, subtotal, tax_amount, delivery_fee, discount, grand_total, updated_at, expires_at)
		VALUES ($1, $2, $3::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (customer_id) DO UPDATE SET items = EXCLUDED.items,
			applied_promotion_id = EXCLUDED.applied_promotion_id, applied_promotion_code = EXCLUDED.applied_promotion_code,
			total_items = EXCLUDED.total_items, subtotal = EXCLUDED.subtotal, tax_amount = EXCLUDED.tax_amount,
			delivery_fee = EXCLUDED.delivery_fee, discount = EXCLUDED.discount, grand_total = EXCLUDED.grand_total,
			updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at`,
		c.CustomerID, items, promoID, promoCode,
		c.TotalItems, c.Subtotal, c.TaxAmount, c.DeliveryFee, c.Discount, c.GrandTotal, c.UpdatedAt, c.ExpiresAt)
	return err
}

// Delete removes the cart of customerID. Deleting a missing cart is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, customerID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE customer_id = $1`, customerID)
	return err
}

// PurgeExpired deletes carts that expired before now.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM carts WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nonNilItems(items []pricing.LineItem) []pricing.LineItem {
	if items == nil {
		return []pricing.LineItem{}
	}
	return items
}
