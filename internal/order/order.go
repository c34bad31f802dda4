// Package order records placed orders. An order freezes the lines and totals
// the customer was quoted at checkout.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// ErrNotFound indicates the order does not exist or belongs to someone else.
var ErrNotFound = errors.New("order not found")

// StatusPlaced is the status of every order when it is created.
const StatusPlaced = "PLACED"

// Order is a placed order.
type Order struct {
	ID            string             `json:"id"`
	CustomerID    string             `json:"customerId"`
	Items         []pricing.LineItem `json:"items"`
	pricing.Totals
	PromotionID   *string   `json:"promotionId,omitempty"`
	PromotionCode *string   `json:"promotionCode,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FromCart builds a new order from a priced cart.
func FromCart(c pricing.Cart, notes string, now time.Time) Order {
	o := Order{
		ID:         uuid.NewString(),
		CustomerID: c.CustomerID,
		Items:      append([]pricing.LineItem(nil), c.Items...),
		Totals:     c.Totals,
		Notes:      notes,
		Status:     StatusPlaced,
		CreatedAt:  now,
	}
	if c.AppliedPromotion != nil {
		id, code := c.AppliedPromotion.ID, c.AppliedPromotion.Code
		o.PromotionID, o.PromotionCode = &id, &code
	}
	return o
}

const selectColumns = `id::text, customer_id, items, total_items, subtotal, tax_amount, delivery_fee, discount,
	grand_total, promotion_id::text, promotion_code, notes, status, created_at`

// Store persists orders in Postgres.
type Store struct {
	DB db.DBTX
}

// Insert writes o through q, which may be a transaction.
func (s *Store) Insert(ctx context.Context, q db.DBTX, o Order) error {
	if q == nil {
		q = s.DB
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	_, err = q.Exec(ctx, `INSERT INTO orders (id, customer_id, items, total_items, subtotal, tax_amount, delivery_fee,
		discount, grand_total, promotion_id, promotion_code, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::uuid, $11, $12, $13, $14)`,
		o.ID, o.CustomerID, items, o.TotalItems, o.Subtotal, o.TaxAmount, o.DeliveryFee,
		o.Discount, o.GrandTotal, o.PromotionID, o.PromotionCode, o.Notes, o.Status, o.CreatedAt)
	return err
}

// Get loads one of the customer's orders.
func (s *Store) Get(ctx context.Context, customerID, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, ErrNotFound
	}
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+selectColumns+` FROM orders WHERE id = $1 AND customer_id = $2`, id, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// ListByCustomer returns the customer's orders, newest first, with the total count.
func (s *Store) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]Order, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	orders, err := s.query(ctx, `SELECT `+selectColumns+` FROM orders WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, customerID, limit, offset)
	return orders, total, err
}

// List returns all orders, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Order, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}
	orders, err := s.query(ctx, `SELECT `+selectColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return orders, total, err
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o     Order
		items []byte
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &items, &o.TotalItems, &o.Subtotal, &o.TaxAmount, &o.DeliveryFee,
		&o.Discount, &o.GrandTotal, &o.PromotionID, &o.PromotionCode, &o.Notes, &o.Status, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode order items: %w", err)
	}
	return o, nil
}
