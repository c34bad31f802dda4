package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/pricing"
)

func TestCartDocumentKeepsExactAmounts(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c := pricing.Cart{
		CustomerID: "cust-1",
		Items: []pricing.LineItem{{
			ID:            "line-1",
			ProductRef:    "pz-margherita",
			Snapshot:      pricing.Snapshot{Name: "Margherita", Category: "pizza", BasePrice: pricing.MustMoney("500")},
			Quantity:      2,
			Size:          pricing.SizeLarge,
			SelectedPrice: pricing.MustMoney("650.10"),
			Toppings:      []pricing.Topping{{Name: "Olives", Category: pricing.ToppingVegetables, Price: pricing.MustMoney("30.05")}},
			LineSubtotal:  pricing.MustMoney("1330.25"),
		}},
		AppliedPromotion: &pricing.AppliedPromotion{ID: "p-1", Code: "SAVE10"},
		UpdatedAt:        now,
		ExpiresAt:        now.Add(DefaultTTL),
	}
	c.TotalItems = 2
	c.Subtotal = pricing.MustMoney("1330.25")
	c.TaxAmount = pricing.MustMoney("113.07")
	c.GrandTotal = pricing.MustMoney("1310.30")
	c.Discount = pricing.MustMoney("133.02")

	doc, err := newCartDocument(c)
	require.NoError(t, err)
	require.Equal(t, "1330.25", doc.Subtotal.String())

	back, err := doc.toCart()
	require.NoError(t, err)
	require.Equal(t, c.AppliedPromotion, back.AppliedPromotion)
	require.True(t, back.GrandTotal.Equal(c.GrandTotal))
	require.True(t, back.Items[0].SelectedPrice.Equal(pricing.MustMoney("650.10")))
	require.True(t, back.Items[0].Toppings[0].Price.Equal(pricing.MustMoney("30.05")))
	require.Equal(t, pricing.SizeLarge, back.Items[0].Size)
	require.Equal(t, c.ExpiresAt, back.ExpiresAt)
}
