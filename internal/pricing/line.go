package pricing

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CategoryPizza is the only catalog category that carries sizes and toppings.
const CategoryPizza = "pizza"

const (
	MinQuantity        = 1
	MaxQuantity        = 50
	MaxInstructionsLen = 200
)

// Validation codes reported by ValidationError.
const (
	CodeSizeRequiredForPizza = "SIZE_REQUIRED_FOR_PIZZA"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeInstructionsTooLong  = "INSTRUCTIONS_TOO_LONG"
	CodeInvalidTopping       = "INVALID_TOPPING"
	CodeNegativePrice        = "NEGATIVE_PRICE"
	CodeProductRequired      = "PRODUCT_REQUIRED"
)

// ErrInvalidLine is the sentinel wrapped by every ValidationError.
var ErrInvalidLine = errors.New("pricing: invalid line item")

// ValidationError reports a malformed line item. It is raised before anything is
// persisted.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrInvalidLine }

// ProblemCode, ProblemStatus and ProblemDetails let the HTTP layer render the error.
func (e *ValidationError) ProblemCode() string { return "VALIDATION_FAILED" }
func (e *ValidationError) ProblemStatus() int  { return http.StatusUnprocessableEntity }
func (e *ValidationError) ProblemDetails() any {
	return map[string]string{"reason": e.Code, "field": e.Field}
}

func invalid(code, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Size is a pizza size tier.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Valid reports whether s is one of the known tiers.
func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// ToppingCategory groups toppings on the menu.
type ToppingCategory string

const (
	ToppingVegetables ToppingCategory = "vegetables"
	ToppingMeat       ToppingCategory = "meat"
	ToppingCheese     ToppingCategory = "cheese"
	ToppingSauce      ToppingCategory = "sauce"
)

func (c ToppingCategory) Valid() bool {
	switch c {
	case ToppingVegetables, ToppingMeat, ToppingCheese, ToppingSauce:
		return true
	}
	return false
}

// Topping is a flat add-on applied once per line.
type Topping struct {
	Name     string          `json:"name"`
	Category ToppingCategory `json:"category"`
	Price    Money           `json:"price"`
}

// Snapshot holds the catalog facts captured when the item entered the cart.
type Snapshot struct {
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Category  string `json:"category"`
	BasePrice Money  `json:"basePrice"`
}

// IsPizza reports whether the snapshot belongs to the sized category. The
// comparison is exact; the catalog normalises categories when items are written.
func (s Snapshot) IsPizza() bool {
	return s.Category == CategoryPizza
}

// LineItem is one entry in a cart or order. LineSubtotal is derived and is
// overwritten on every recompute.
type LineItem struct {
	ID                  string    `json:"id"`
	ProductRef          string    `json:"productRef"`
	Snapshot            Snapshot  `json:"snapshot"`
	Quantity            int       `json:"quantity"`
	Size                Size      `json:"size,omitempty"`
	SelectedPrice       Money     `json:"selectedPrice"`
	Toppings            []Topping `json:"toppings"`
	SpecialInstructions string    `json:"specialInstructions,omitempty"`
	LineSubtotal        Money     `json:"lineSubtotal"`
}

// ValidateLine checks the category/size coupling and the field ranges of a line.
func ValidateLine(li LineItem) error {
	if strings.TrimSpace(li.ProductRef) == "" {
		return invalid(CodeProductRequired, "productRef", "product reference is required")
	}
	if li.Snapshot.IsPizza() {
		if li.Size == "" {
			return invalid(CodeSizeRequiredForPizza, "size", "size is required for pizza items")
		}
		if !li.Size.Valid() {
			return invalid(CodeSizeRequiredForPizza, "size", "unknown pizza size %q", li.Size)
		}
	} else {
		if li.Size != "" {
			return invalid(CodeSizeRequiredForPizza, "size", "size is only allowed for pizza items")
		}
		if len(li.Toppings) > 0 {
			return invalid(CodeSizeRequiredForPizza, "toppings", "toppings are only allowed for pizza items")
		}
	}
	if li.Quantity < MinQuantity || li.Quantity > MaxQuantity {
		return invalid(CodeInvalidQuantity, "quantity", "quantity must be between %d and %d", MinQuantity, MaxQuantity)
	}
	if utf8.RuneCountInString(li.SpecialInstructions) > MaxInstructionsLen {
		return invalid(CodeInstructionsTooLong, "specialInstructions", "special instructions exceed %d characters", MaxInstructionsLen)
	}
	if li.SelectedPrice.IsNegative() || li.Snapshot.BasePrice.IsNegative() {
		return invalid(CodeNegativePrice, "selectedPrice", "prices must not be negative")
	}
	for i, tp := range li.Toppings {
		if strings.TrimSpace(tp.Name) == "" || !tp.Category.Valid() {
			return invalid(CodeInvalidTopping, fmt.Sprintf("toppings[%d]", i), "invalid topping %q", tp.Name)
		}
		if tp.Price.IsNegative() {
			return invalid(CodeNegativePrice, fmt.Sprintf("toppings[%d].price", i), "topping prices must not be negative")
		}
	}
	return nil
}

// LineSubtotal returns selectedPrice × quantity plus the topping prices. Toppings
// are charged once per line, not per unit.
func LineSubtotal(li LineItem) Money {
	total := li.SelectedPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
	for _, tp := range li.Toppings {
		total = total.Add(tp.Price)
	}
	return Round2(total)
}

// ClampQuantity bounds q to the allowed range. Callers treat q ≤ 0 as removal
// before clamping.
func ClampQuantity(q int) int {
	if q < MinQuantity {
		return MinQuantity
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

// sameLine reports whether two lines merge: same product, same size and the same
// topping multiset regardless of order.
func sameLine(a, b LineItem) bool {
	if a.ProductRef != b.ProductRef || a.Size != b.Size {
		return false
	}
	if len(a.Toppings) != len(b.Toppings) {
		return false
	}
	ka, kb := toppingKeys(a.Toppings), toppingKeys(b.Toppings)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

func toppingKeys(toppings []Topping) []string {
	keys := make([]string, 0, len(toppings))
	for _, tp := range toppings {
		keys = append(keys, strings.ToLower(strings.TrimSpace(tp.Name))+"|"+string(tp.Category))
	}
	sort.Strings(keys)
	return keys
}
