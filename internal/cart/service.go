package cart

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-resto/internal/catalog"
	"github.com/noah-isme/backend-resto/internal/lock"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/promotion"
	"github.com/noah-isme/backend-resto/internal/settings"
)

// ErrLineNotFound is returned when a mutation names a line the cart does not hold.
var ErrLineNotFound = pricing.ErrLineNotFound

// DefaultTTL is how long a cart survives without mutations.
const DefaultTTL = 7 * 24 * time.Hour

// MenuReader resolves product references against the menu.
type MenuReader interface {
	Item(ctx context.Context, ref string) (catalog.MenuItem, error)
}

// PromotionEvaluator previews promotion discounts without consuming them.
type PromotionEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (promotion.Result, error)
	EvaluateID(ctx context.Context, id string, subtotal decimal.Decimal) (promotion.Result, error)
}

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Notice tells the customer why a previously applied promotion was removed.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// View is a priced cart as returned to the customer.
type View struct {
	pricing.Cart
	PromotionNotice *Notice `json:"promotionNotice,omitempty"`
}

// Service encapsulates cart domain operations. Every mutation reloads the cart,
// applies the change, re-derives all totals and saves the result while holding
// the customer's cart lock.
type Service struct {
	Repo       Repository
	Settings   settings.Provider
	Promotions PromotionEvaluator
	Menu       MenuReader
	Locker     Locker
	TTL        time.Duration
	LockTTL    time.Duration
	Now        func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil || s.Settings == nil || s.Promotions == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// Get returns the customer's cart priced with the current settings. An expired or
// missing cart reads as empty. Nothing is persisted.
func (s *Service) Get(ctx context.Context, customerID string) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	c, err := s.load(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, c)
}

// AddItem resolves the requested product against the menu and adds it, merging
// with an identical line when one exists.
func (s *Service) AddItem(ctx context.Context, customerID string, req catalog.LineRequest) (View, error) {
	if err := s.ready(); err != nil {
		return View{}, err
	}
	if s.Menu == nil {
		return View{}, errors.New("cart service not configured")
	}
	if req.Quantity < pricing.MinQuantity {
		return View{}, &pricing.ValidationError{
			Code:    pricing.CodeInvalidQuantity,
			Field:   "quantity",
			Message: "quantity must be at least 1",
		}
	}
	item, err := s.Menu.Item(ctx, req.ProductRef)
	if err != nil {
		return View{}, err
	}
	req.Quantity = pricing.ClampQuantity(req.Quantity)
	line, err := catalog.BuildLine(item, req)
	if err != nil {
		return View{}, err
	}
	return s.mutate(ctx, "add_item", customerID, func(_ context.Context, c pricing.Cart) (pricing.Cart, error) {
		return pricing.AddLine(c, line)
	})
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, lineID string, qty int) (View, error) {
	return s.mutate(ctx, "update_quantity", customerID, func(_ context.Context, c pricing.Cart) (pricing.Cart, error) {
		return pricing.SetQuantity(c, lineID, qty)
	})
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, customerID, lineID string) (View, error) {
	return s.mutate(ctx, "remove_item", customerID, func(_ context.Context, c pricing.Cart) (pricing.Cart, error) {
		return pricing.RemoveLine(c, lineID)
	})
}

// ApplyPromotion attaches code to the cart. Unlike the re-evaluation that runs on
// other mutations, an ineligible code is reported as an error and the cart is
// left untouched.
func (s *Service) ApplyPromotion(ctx context.Context, customerID, code string) (View, error) {
	return s.mutate(ctx, "apply_promotion", customerID, func(ctx context.Context, c pricing.Cart) (pricing.Cart, error) {
		subtotal, err := pricing.Subtotal(c.Items)
		if err != nil {
			return c, err
		}
		res, err := s.Promotions.Evaluate(ctx, code, subtotal)
		if err != nil {
			return c, err
		}
		c.AppliedPromotion = &pricing.AppliedPromotion{ID: res.PromotionID, Code: res.Code}
		return c, nil
	})
}

// RemovePromotion detaches any applied promotion.
func (s *Service) RemovePromotion(ctx context.Context, customerID string) (View, error) {
	return s.mutate(ctx, "remove_promotion", customerID, func(_ context.Context, c pricing.Cart) (pricing.Cart, error) {
		c.AppliedPromotion = nil
		return c, nil
	})
}

// Clear empties the cart and detaches its promotion.
func (s *Service) Clear(ctx context.Context, customerID string) (View, error) {
	return s.mutate(ctx, "clear", customerID, func(_ context.Context, c pricing.Cart) (pricing.Cart, error) {
		return pricing.Clear(c), nil
	})
}

// Settle runs fn with the customer's current cart while holding the cart lock and
// deletes the cart once fn succeeds. Checkout uses it so no mutation can slip in
// between pricing the order and emptying the cart.
//
// Once fn has succeeded its work is committed, so a failed delete is logged
// instead of returned. Repositories that share a transaction with fn should
// delete the cart there.
func (s *Service) Settle(ctx context.Context, customerID string, fn func(ctx context.Context, c pricing.Cart) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.withLock(ctx, customerID, func(ctx context.Context) error {
		c, err := s.load(ctx, customerID)
		if err != nil {
			return err
		}
		if err := fn(ctx, c); err != nil {
			return err
		}
		if err := s.Repo.Delete(ctx, customerID); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("customer_id", customerID).Msg("delete settled cart failed")
		}
		return nil
	})
}

// PurgeExpired deletes carts that expired before now.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.Repo == nil {
		return 0, errors.New("cart service not configured")
	}
	n, err := s.Repo.PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	obs.CountCartsPurged(n)
	return n, nil
}

// Quote re-derives the totals of c with the current settings. Unlike the cart
// mutations it fails with the promotion error when the applied promotion is no
// longer eligible.
func (s *Service) Quote(ctx context.Context, c pricing.Cart) (pricing.Cart, error) {
	if err := s.ready(); err != nil {
		return pricing.Cart{}, err
	}
	view, err := s.priceWith(ctx, c, true)
	return view.Cart, err
}

func (s *Service) mutate(ctx context.Context, op, customerID string, fn func(context.Context, pricing.Cart) (pricing.Cart, error)) (view View, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.CountCartMutation(op, result)
	}()
	if err := s.ready(); err != nil {
		return View{}, err
	}
	err = s.withLock(ctx, customerID, func(ctx context.Context) error {
		ctx, span := obs.StartSpan(ctx, "cart."+op, attribute.String("customer.id", customerID))
		defer span.End()

		c, err := s.load(ctx, customerID)
		if err != nil {
			return err
		}
		next, err := fn(ctx, c)
		if err != nil {
			return err
		}
		priced, err := s.price(ctx, next)
		if err != nil {
			return err
		}
		now := s.now()
		priced.UpdatedAt = now
		priced.ExpiresAt = now.Add(s.ttl())
		if err := s.Repo.Save(ctx, priced.Cart); err != nil {
			return err
		}
		view = priced
		return nil
	})
	return view, err
}

func (s *Service) withLock(ctx context.Context, customerID string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, lock.CartKey(customerID), s.LockTTL, fn)
}

func (s *Service) load(ctx context.Context, customerID string) (pricing.Cart, error) {
	c, err := s.Repo.Get(ctx, customerID)
	switch {
	case errors.Is(err, ErrNotFound):
		return pricing.Cart{CustomerID: customerID}, nil
	case err != nil:
		return pricing.Cart{}, err
	case !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(s.now()):
		return pricing.Cart{CustomerID: customerID}, nil
	}
	return c, nil
}

func (s *Service) price(ctx context.Context, c pricing.Cart) (View, error) {
	return s.priceWith(ctx, c, false)
}

func (s *Service) priceWith(ctx context.Context, c pricing.Cart, strict bool) (View, error) {
	current, err := s.Settings.Current(ctx)
	if err != nil {
		return View{}, err
	}
	subtotal, err := pricing.Subtotal(c.Items)
	if err != nil {
		return View{}, err
	}
	var (
		discount = decimal.Zero
		notice   *Notice
	)
	if c.AppliedPromotion != nil {
		res, err := s.Promotions.EvaluateID(ctx, c.AppliedPromotion.ID, subtotal)
		var perr *promotion.Error
		switch {
		case errors.As(err, &perr) && !strict:
			notice = &Notice{Code: perr.Code, Message: perr.Message}
			c.AppliedPromotion = nil
		case err != nil:
			return View{}, err
		default:
			discount = res.Discount
		}
	}
	priced, err := pricing.Recompute(c, current, discount)
	if err != nil {
		return View{}, err
	}
	if priced.Items == nil {
		priced.Items = []pricing.LineItem{}
	}
	return View{Cart: priced, PromotionNotice: notice}, nil
}
