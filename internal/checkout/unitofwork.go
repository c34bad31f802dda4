package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/ledger"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/resilience"
)

// Tx is the work that must commit or roll back together at checkout.
type Tx interface {
	Consume(ctx context.Context, promotionID string) (ledger.Usage, error)
	InsertOrder(ctx context.Context, o order.Order) error
	// DeleteCart empties the customer's cart as part of the same commit. It is
	// a no-op when carts are stored outside the transaction.
	DeleteCart(ctx context.Context, customerID string) error
}

// UnitOfWork runs fn atomically.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// PostgresUnitOfWork runs checkout in one database transaction and retries the
// whole transaction on transient failures.
type PostgresUnitOfWork struct {
	DB     db.TxBeginner
	Ledger ledger.Postgres
	Orders *order.Store
	Retry  resilience.Policy
	// CartsInTx is set when carts live in the same Postgres database, so the
	// cart is deleted in the checkout transaction.
	CartsInTx bool
	// Timeout bounds the whole run, retries included. Zero means no limit.
	Timeout time.Duration
}

// Run executes fn inside a transaction.
func (u *PostgresUnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if u == nil || u.DB == nil || u.Orders == nil {
		return errors.New("checkout: unit of work not configured")
	}
	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	return u.Retry.Do(ctx, func(ctx context.Context) error {
		return db.WithTx(ctx, u.DB, func(tx pgx.Tx) error {
			return fn(ctx, pgTx{tx: tx, ledger: u.Ledger.Bind(tx), orders: u.Orders, cartsInTx: u.CartsInTx})
		})
	})
}

type pgTx struct {
	tx        pgx.Tx
	ledger    ledger.Postgres
	orders    *order.Store
	cartsInTx bool
}

func (t pgTx) Consume(ctx context.Context, promotionID string) (ledger.Usage, error) {
	return t.ledger.Consume(ctx, promotionID)
}

func (t pgTx) InsertOrder(ctx context.Context, o order.Order) error {
	return t.orders.Insert(ctx, t.tx, o)
}

func (t pgTx) DeleteCart(ctx context.Context, customerID string) error {
	if !t.cartsInTx {
		return nil
	}
	return (&cart.PostgresRepository{DB: t.tx}).Delete(ctx, customerID)
}
