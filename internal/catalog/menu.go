package catalog

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

// ErrItemNotFound is returned when a product reference does not resolve.
var ErrItemNotFound = errors.New("catalog: menu item not found")

// ErrItemUnavailable is returned when the item exists but is not sold right now.
var ErrItemUnavailable = errors.New("catalog: menu item unavailable")

// SizePrices are the per-size prices of a pizza.
type SizePrices struct {
	Small  *decimal.Decimal `json:"small,omitempty"`
	Medium *decimal.Decimal `json:"medium,omitempty"`
	Large  *decimal.Decimal `json:"large,omitempty"`
}

// For returns the price of size and whether the tier is offered.
func (sp SizePrices) For(size pricing.Size) (decimal.Decimal, bool) {
	var p *decimal.Decimal
	switch size {
	case pricing.SizeSmall:
		p = sp.Small
	case pricing.SizeMedium:
		p = sp.Medium
	case pricing.SizeLarge:
		p = sp.Large
	}
	if p == nil {
		return decimal.Zero, false
	}
	return *p, true
}

// MenuItem is a sellable catalog entry.
type MenuItem struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Image     string            `json:"image,omitempty"`
	Category  string            `json:"category"`
	BasePrice decimal.Decimal   `json:"basePrice"`
	Sizes     SizePrices        `json:"sizePrices"`
	Toppings  []pricing.Topping `json:"toppings"`
	Available bool              `json:"available"`
}

// Snapshot captures the catalog facts stored on a cart line.
func (m MenuItem) Snapshot() pricing.Snapshot {
	return pricing.Snapshot{Name: m.Name, Image: m.Image, Category: m.Category, BasePrice: m.BasePrice}
}

// LineRequest is what a customer asks to add to the cart.
type LineRequest struct {
	ProductRef          string
	Quantity            int
	Size                pricing.Size
	Toppings            []string
	SpecialInstructions string
}

// BuildLine resolves the selected price and topping prices from item and returns
// a line ready for pricing.AddLine. Sizes and toppings the item does not offer
// are rejected.
func BuildLine(item MenuItem, req LineRequest) (pricing.LineItem, error) {
	li := pricing.LineItem{
		ProductRef:          item.ID,
		Snapshot:            item.Snapshot(),
		Quantity:            req.Quantity,
		Size:                req.Size,
		SelectedPrice:       item.BasePrice,
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
	}
	snap := li.Snapshot
	if snap.IsPizza() && req.Size != "" {
		price, ok := item.Sizes.For(req.Size)
		if !ok {
			return pricing.LineItem{}, &pricing.ValidationError{
				Code:    pricing.CodeSizeRequiredForPizza,
				Field:   "size",
				Message: "size " + string(req.Size) + " is not offered for " + item.Name,
			}
		}
		li.SelectedPrice = price
	}
	if !snap.IsPizza() && len(req.Toppings) > 0 {
		return pricing.LineItem{}, &pricing.ValidationError{
			Code:    pricing.CodeSizeRequiredForPizza,
			Field:   "toppings",
			Message: "toppings are only allowed for pizza items",
		}
	}
	for _, name := range req.Toppings {
		tp, ok := findTopping(item.Toppings, name)
		if !ok {
			return pricing.LineItem{}, &pricing.ValidationError{
				Code:    pricing.CodeInvalidTopping,
				Field:   "toppings",
				Message: "topping " + strings.TrimSpace(name) + " is not offered for " + item.Name,
			}
		}
		li.Toppings = append(li.Toppings, tp)
	}
	if err := pricing.ValidateLine(li); err != nil {
		return pricing.LineItem{}, err
	}
	return li, nil
}

func findTopping(offered []pricing.Topping, name string) (pricing.Topping, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, tp := range offered {
		if strings.ToLower(tp.Name) == want {
			return tp, true
		}
	}
	return pricing.Topping{}, false
}
