package promotion

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/obs"
)

// Reader loads promotion definitions. Implementations return ErrNotFound when
// nothing matches.
type Reader interface {
	GetByCode(ctx context.Context, code string) (Promotion, error)
	GetByID(ctx context.Context, id string) (Promotion, error)
}

// Service evaluates promotions against stored definitions.
type Service struct {
	Store Reader
	Now   func() time.Time
}

// Evaluate looks up code (case-insensitively) and evaluates it for subtotal.
func (s *Service) Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (Result, error) {
	if s == nil || s.Store == nil {
		return Result{}, errors.New("promotion service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Result{}, s.count(notFound(code))
	}
	p, err := s.Store.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, s.count(notFound(normalized))
		}
		return Result{}, err
	}
	return s.evaluate(&p, subtotal)
}

// EvaluateID re-evaluates a promotion already attached to a cart.
func (s *Service) EvaluateID(ctx context.Context, id string, subtotal decimal.Decimal) (Result, error) {
	if s == nil || s.Store == nil {
		return Result{}, errors.New("promotion service not configured")
	}
	p, err := s.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, s.count(notFound(id))
		}
		return Result{}, err
	}
	return s.evaluate(&p, subtotal)
}

func (s *Service) evaluate(p *Promotion, subtotal decimal.Decimal) (Result, error) {
	res, err := Evaluate(p, subtotal, s.now())
	if err != nil {
		return Result{}, s.count(err)
	}
	obs.CountPromotionEvaluation("ELIGIBLE")
	return res, nil
}

func (s *Service) count(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		obs.CountPromotionEvaluation(perr.Code)
	}
	return err
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
