package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/resilience"
)

// DefaultRetry is the retry policy used when none is configured.
var DefaultRetry = resilience.Policy{
	Target:      "ledger",
	MaxAttempts: 3,
	BaseBackoff: 25 * time.Millisecond,
	Jitter:      0.2,
	Retryable:   db.IsTransient,
}

// Postgres is a Ledger backed by a single conditional UPDATE. Concurrent
// callers serialise on the row lock; a caller that loses the race sees zero
// affected rows rather than an over-count.
type Postgres struct {
	DB    db.DBTX
	Retry resilience.Policy
}

// Bind returns a ledger that runs on tx. It does not retry on its own because a
// failed statement aborts the whole transaction; the caller retries the unit
// of work instead.
func (p Postgres) Bind(tx pgx.Tx) Postgres {
	return Postgres{DB: tx, Retry: p.policy().Once()}
}

// Consume increments the usage count of promotionID when it is below the limit.
func (p Postgres) Consume(ctx context.Context, promotionID string) (Usage, error) {
	var usage Usage
	err := p.policy().Do(ctx, func(ctx context.Context) error {
		var err error
		usage, err = p.consumeOnce(ctx, promotionID)
		return err
	})
	record(err)
	return usage, err
}

func (p Postgres) consumeOnce(ctx context.Context, promotionID string) (Usage, error) {
	var (
		count int
		limit *int32
	)
	err := p.DB.QueryRow(ctx, `UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING usage_count, usage_limit`, promotionID).Scan(&count, &limit)
	if err == nil {
		usage := Usage{Count: count}
		if limit != nil {
			l := int(*limit)
			usage.Limit = &l
		}
		return usage, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Usage{}, err
	}

	var exists bool
	if err := p.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`, promotionID).Scan(&exists); err != nil {
		return Usage{}, err
	}
	if !exists {
		return Usage{}, notFound()
	}
	return Usage{}, limitReached()
}

func (p Postgres) policy() resilience.Policy {
	if p.Retry.MaxAttempts == 0 && p.Retry.Retryable == nil {
		return DefaultRetry
	}
	return p.Retry
}
