package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Store keeps the singleton settings row in Postgres.
type Store struct {
	DB db.DBTX
}

// Current returns the stored settings, inserting the defaults when the row does
// not exist yet. Concurrent first reads converge on a single row.
func (s *Store) Current(ctx context.Context) (pricing.Settings, error) {
	out, err := s.load(ctx)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return pricing.Settings{}, err
	}
	d := Defaults()
	if _, err := s.DB.Exec(ctx, `INSERT INTO pricing_settings (id, tax_rate, delivery_fee, free_delivery_threshold)
		VALUES (1, $1, $2, $3) ON CONFLICT (id) DO NOTHING`, d.TaxRate, d.DeliveryFee, d.FreeDeliveryThreshold); err != nil {
		return pricing.Settings{}, err
	}
	return s.load(ctx)
}

// Update replaces the settings after validating them.
func (s *Store) Update(ctx context.Context, in pricing.Settings) (pricing.Settings, error) {
	if err := Validate(in); err != nil {
		return pricing.Settings{}, err
	}
	var out pricing.Settings
	err := s.DB.QueryRow(ctx, `INSERT INTO pricing_settings (id, tax_rate, delivery_fee, free_delivery_threshold, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET tax_rate = EXCLUDED.tax_rate, delivery_fee = EXCLUDED.delivery_fee,
			free_delivery_threshold = EXCLUDED.free_delivery_threshold, updated_at = now()
		RETURNING tax_rate, delivery_fee, free_delivery_threshold`,
		in.TaxRate, in.DeliveryFee, in.FreeDeliveryThreshold).Scan(&out.TaxRate, &out.DeliveryFee, &out.FreeDeliveryThreshold)
	return out, err
}

func (s *Store) load(ctx context.Context) (pricing.Settings, error) {
	var out pricing.Settings
	err := s.DB.QueryRow(ctx, `SELECT tax_rate, delivery_fee, free_delivery_threshold FROM pricing_settings WHERE id = 1`).
		Scan(&out.TaxRate, &out.DeliveryFee, &out.FreeDeliveryThreshold)
	return out, err
}
