package pricing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLineNotFound is returned when a mutation references an unknown line.
var ErrLineNotFound = errors.New("pricing: line item not found")

// Settings are the fee and tax parameters in force when a cart is priced.
// TaxRate is a percentage (8.5 means 8.5%).
type Settings struct {
	TaxRate               Money `json:"taxRate"`
	DeliveryFee           Money `json:"deliveryFee"`
	FreeDeliveryThreshold Money `json:"freeDeliveryThreshold"`
}

// AppliedPromotion is the weak reference a cart keeps to a promotion.
type AppliedPromotion struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Totals are the derived amounts of a cart. They are always re-derived from the
// items and never patched incrementally.
type Totals struct {
	TotalItems  int   `json:"totalItems"`
	Subtotal    Money `json:"subtotal"`
	TaxAmount   Money `json:"taxAmount"`
	DeliveryFee Money `json:"deliveryFee"`
	Discount    Money `json:"discount"`
	GrandTotal  Money `json:"grandTotal"`
}

// Cart is a customer's live quote.
type Cart struct {
	CustomerID       string            `json:"customerId"`
	Items            []LineItem        `json:"items"`
	AppliedPromotion *AppliedPromotion `json:"appliedPromotion,omitempty"`
	Totals
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Subtotal validates every line and returns the sum of the line subtotals. It is
// the amount promotions are evaluated against.
func Subtotal(items []LineItem) (Money, error) {
	total := decimal.Zero
	for _, li := range items {
		if err := ValidateLine(li); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(LineSubtotal(li))
	}
	return total, nil
}

// Recompute derives all totals from the cart's items, the discount of the applied
// promotion and the given settings. It does not modify c.
func Recompute(c Cart, s Settings, discount Money) (Cart, error) {
	out := c
	out.Items = make([]LineItem, len(c.Items))
	var (
		subtotal   = decimal.Zero
		totalItems int
	)
	for i, li := range c.Items {
		if err := ValidateLine(li); err != nil {
			return c, err
		}
		li.Toppings = append([]Topping(nil), li.Toppings...)
		li.LineSubtotal = LineSubtotal(li)
		out.Items[i] = li
		subtotal = subtotal.Add(li.LineSubtotal)
		totalItems += li.Quantity
	}

	tax := Round2(subtotal.Mul(NonNegative(s.TaxRate)).Div(hundred))
	fee := NonNegative(s.DeliveryFee)
	if subtotal.GreaterThanOrEqual(s.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}
	discount = Round2(NonNegative(discount))
	if c.AppliedPromotion == nil {
		discount = decimal.Zero
	}

	out.Totals = Totals{
		TotalItems:  totalItems,
		Subtotal:    subtotal,
		TaxAmount:   tax,
		DeliveryFee: Round2(fee),
		Discount:    discount,
		GrandTotal:  NonNegative(subtotal.Add(tax).Add(fee).Sub(discount)),
	}
	return out, nil
}

// AddLine validates li and appends it, or merges it into an existing line with
// the same product, size and toppings. A merged quantity above the maximum is
// clamped rather than rejected.
func AddLine(c Cart, li LineItem) (Cart, error) {
	if li.Quantity > MaxQuantity {
		li.Quantity = MaxQuantity
	}
	if err := ValidateLine(li); err != nil {
		return c, err
	}
	items := append([]LineItem(nil), c.Items...)
	for i := range items {
		if !sameLine(items[i], li) {
			continue
		}
		items[i].Quantity = ClampQuantity(items[i].Quantity + li.Quantity)
		if li.SpecialInstructions != "" {
			items[i].SpecialInstructions = li.SpecialInstructions
		}
		items[i].LineSubtotal = LineSubtotal(items[i])
		c.Items = items
		return c, nil
	}
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	li.Toppings = append([]Topping(nil), li.Toppings...)
	li.LineSubtotal = LineSubtotal(li)
	c.Items = append(items, li)
	return c, nil
}

// SetQuantity changes the quantity of a line. A quantity of zero or less removes
// the line; values above the maximum are clamped.
func SetQuantity(c Cart, lineID string, qty int) (Cart, error) {
	if qty <= 0 {
		return RemoveLine(c, lineID)
	}
	items := append([]LineItem(nil), c.Items...)
	for i := range items {
		if items[i].ID != lineID {
			continue
		}
		items[i].Quantity = ClampQuantity(qty)
		items[i].LineSubtotal = LineSubtotal(items[i])
		c.Items = items
		return c, nil
	}
	return c, ErrLineNotFound
}

// RemoveLine drops a line from the cart.
func RemoveLine(c Cart, lineID string) (Cart, error) {
	items := make([]LineItem, 0, len(c.Items))
	found := false
	for _, li := range c.Items {
		if li.ID == lineID {
			found = true
			continue
		}
		items = append(items, li)
	}
	if !found {
		return c, ErrLineNotFound
	}
	c.Items = items
	return c, nil
}

// Clear empties the cart and detaches any promotion.
func Clear(c Cart) Cart {
	c.Items = nil
	c.AppliedPromotion = nil
	c.Totals = Totals{}
	return c
}
