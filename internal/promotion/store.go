package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/db"
)

const selectColumns = `id, code, title, description, discount_kind, discount_value, max_discount_cap,
	min_order_value, valid_from, valid_until, usage_limit, usage_count, is_active, created_at, updated_at`

// Store persists promotions in Postgres.
type Store struct {
	DB  db.DBTX
	Now func() time.Time
}

// GetByCode loads a promotion by its normalized code.
func (s *Store) GetByCode(ctx context.Context, code string) (Promotion, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+selectColumns+` FROM promotions WHERE code = $1`, NormalizeCode(code))
	return scanPromotion(row)
}

// GetByID loads a promotion by id.
func (s *Store) GetByID(ctx context.Context, id string) (Promotion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Promotion{}, ErrNotFound
	}
	row := s.DB.QueryRow(ctx, `SELECT `+selectColumns+` FROM promotions WHERE id = $1`, id)
	return scanPromotion(row)
}

// ListFilter narrows List results.
type ListFilter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// List returns promotions ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Promotion, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + selectColumns + ` FROM promotions`
	if f.ActiveOnly {
		query += ` WHERE is_active AND valid_until > now()`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := s.DB.Query(ctx, query, limit, max(f.Offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts p, assigning an id when missing. The usage count always starts
// at zero.
func (s *Store) Create(ctx context.Context, p Promotion) (Promotion, error) {
	p.Code = NormalizeCode(p.Code)
	p.UsageCount = 0
	if err := p.Validate(); err != nil {
		return Promotion{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	row := s.DB.QueryRow(ctx, `INSERT INTO promotions (id, code, title, description, discount_kind, discount_value,
		max_discount_cap, min_order_value, valid_from, valid_until, usage_limit, usage_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, $13, $13)
		RETURNING `+selectColumns,
		p.ID, p.Code, p.Title, p.Description, string(p.Kind), p.Value, nullDecimal(p.MaxDiscountCap),
		p.MinOrderValue, p.ValidFrom, p.ValidUntil, p.UsageLimit, p.IsActive, now)
	created, err := scanPromotion(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Promotion{}, fmt.Errorf("%w: %s", ErrCodeTaken, p.Code)
		}
		return Promotion{}, err
	}
	return created, nil
}

// Update replaces the editable fields of the promotion with the given id. The
// usage count is owned by the ledger and is never written here; lowering the
// limit below the current count is rejected by the table constraint.
func (s *Store) Update(ctx context.Context, p Promotion) (Promotion, error) {
	p.Code = NormalizeCode(p.Code)
	if err := p.Validate(); err != nil {
		return Promotion{}, err
	}
	row := s.DB.QueryRow(ctx, `UPDATE promotions SET code = $2, title = $3, description = $4, discount_kind = $5,
		discount_value = $6, max_discount_cap = $7, min_order_value = $8, valid_from = $9, valid_until = $10,
		usage_limit = $11, is_active = $12, updated_at = $13
		WHERE id = $1
		RETURNING `+selectColumns,
		p.ID, p.Code, p.Title, p.Description, string(p.Kind), p.Value, nullDecimal(p.MaxDiscountCap),
		p.MinOrderValue, p.ValidFrom, p.ValidUntil, p.UsageLimit, p.IsActive, s.now())
	updated, err := scanPromotion(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Promotion{}, fmt.Errorf("%w: %s", ErrCodeTaken, p.Code)
		}
		if db.IsCheckViolation(err) {
			return Promotion{}, ErrLimitBelowUsage
		}
		return Promotion{}, err
	}
	return updated, nil
}

// SetActive toggles the active flag.
func (s *Store) SetActive(ctx context.Context, id string, active bool) (Promotion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Promotion{}, ErrNotFound
	}
	row := s.DB.QueryRow(ctx, `UPDATE promotions SET is_active = $2, updated_at = $3 WHERE id = $1 RETURNING `+selectColumns,
		id, active, s.now())
	return scanPromotion(row)
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var (
		p      Promotion
		kind   string
		maxCap decimal.NullDecimal
		limit  *int32
	)
	err := row.Scan(&p.ID, &p.Code, &p.Title, &p.Description, &kind, &p.Value, &maxCap,
		&p.MinOrderValue, &p.ValidFrom, &p.ValidUntil, &limit, &p.UsageCount, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, ErrNotFound
		}
		return Promotion{}, err
	}
	p.Kind = Kind(kind)
	if maxCap.Valid {
		v := maxCap.Decimal
		p.MaxDiscountCap = &v
	}
	if limit != nil {
		v := int(*limit)
		p.UsageLimit = &v
	}
	return p, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
