package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/cache"
)

type menuStore interface {
	GetItem(ctx context.Context, id string) (MenuItem, error)
	ListItems(ctx context.Context, category string, limit, offset int) ([]MenuItem, error)
}

// Service serves menu items with an optional read-through cache.
type Service struct {
	store        menuStore
	cache        *cache.Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        menuStore
	Cache        *cache.Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: menu store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 50
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 200
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

// Item resolves a product reference to a sellable menu item.
func (s *Service) Item(ctx context.Context, ref string) (MenuItem, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return MenuItem{}, ErrItemNotFound
	}
	var item MenuItem
	key := itemCacheKey(ref)
	if ok, err := s.cache.GetJSON(ctx, key, &item); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("menu cache read failed")
	} else if ok {
		return available(item)
	}
	item, err := s.store.GetItem(ctx, ref)
	if err != nil {
		return MenuItem{}, err
	}
	if err := s.cache.SetJSON(ctx, key, item); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("menu cache write failed")
	}
	return available(item)
}

// List returns menu items, optionally filtered by category.
func (s *Service) List(ctx context.Context, category string, page, limit int) ([]MenuItem, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.store.ListItems(ctx, NormalizeCategory(category), limit, (page-1)*limit)
}

func available(item MenuItem) (MenuItem, error) {
	if !item.Available {
		return MenuItem{}, ErrItemUnavailable
	}
	return item, nil
}

func itemCacheKey(ref string) string {
	return "item:" + ref
}
