package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/db"
)

const menuColumns = `id, name, image, category, base_price, size_prices, toppings, available`

// Store reads the menu from Postgres.
type Store struct {
	DB db.DBTX
}

// GetItem loads one menu item by id.
func (s *Store) GetItem(ctx context.Context, id string) (MenuItem, error) {
	item, err := scanItem(s.DB.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MenuItem{}, ErrItemNotFound
	}
	return item, err
}

// ListItems returns available items ordered by category and name.
func (s *Store) ListItems(ctx context.Context, category string, limit, offset int) ([]MenuItem, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+menuColumns+` FROM menu_items
		WHERE available AND ($1 = '' OR lower(category) = $1)
		ORDER BY category, name LIMIT $2 OFFSET $3`, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]MenuItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NormalizeCategory lower-cases and trims a category name so that the pricing
// rules can compare it exactly.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Upsert writes item, replacing an existing row with the same id.
func (s *Store) Upsert(ctx context.Context, item MenuItem) error {
	item.Category = NormalizeCategory(item.Category)
	sizes, err := json.Marshal(item.Sizes)
	if err != nil {
		return err
	}
	toppings, err := json.Marshal(item.Toppings)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `INSERT INTO menu_items (id, name, image, category, base_price, size_prices, toppings, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image = EXCLUDED.image, category = EXCLUDED.category,
			base_price = EXCLUDED.base_price, size_prices = EXCLUDED.size_prices, toppings = EXCLUDED.toppings,
			available = EXCLUDED.available, updated_at = now()`,
		item.ID, item.Name, item.Image, item.Category, item.BasePrice, sizes, toppings, item.Available)
	return err
}

func scanItem(row pgx.Row) (MenuItem, error) {
	var (
		item     MenuItem
		sizes    []byte
		toppings []byte
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Image, &item.Category, &item.BasePrice, &sizes, &toppings, &item.Available); err != nil {
		return MenuItem{}, err
	}
	if len(sizes) > 0 {
		if err := json.Unmarshal(sizes, &item.Sizes); err != nil {
			return MenuItem{}, err
		}
	}
	if len(toppings) > 0 {
		if err := json.Unmarshal(toppings, &item.Toppings); err != nil {
			return MenuItem{}, err
		}
	}
	return item, nil
}
