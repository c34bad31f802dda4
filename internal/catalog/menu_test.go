package catalog_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/catalog"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

func TestBuildLine(t *testing.T) {
	t.Run("pizza takes the size price and resolves toppings", func(t *testing.T) {
		li, err := catalog.BuildLine(margherita(), catalog.LineRequest{
			Quantity: 2,
			Size:     pricing.SizeLarge,
			Toppings: []string{" olives ", "PEPPERONI"},
		})
		require.NoError(t, err)
		require.Equal(t, "pz-margherita", li.ProductRef)
		require.True(t, li.SelectedPrice.Equal(pricing.MustMoney("650")))
		require.Len(t, li.Toppings, 2)
		require.True(t, pricing.LineSubtotal(li).Equal(pricing.MustMoney("1390")))
	})

	t.Run("pizza without size", func(t *testing.T) {
		_, err := catalog.BuildLine(margherita(), catalog.LineRequest{Quantity: 1})
		requireReason(t, err, pricing.CodeSizeRequiredForPizza)
	})

	t.Run("size not offered", func(t *testing.T) {
		item := margherita()
		item.Sizes.Small = nil
		_, err := catalog.BuildLine(item, catalog.LineRequest{Quantity: 1, Size: pricing.SizeSmall})
		requireReason(t, err, pricing.CodeSizeRequiredForPizza)
	})

	t.Run("unknown topping", func(t *testing.T) {
		_, err := catalog.BuildLine(margherita(), catalog.LineRequest{Quantity: 1, Size: pricing.SizeMedium, Toppings: []string{"pineapple"}})
		requireReason(t, err, pricing.CodeInvalidTopping)
	})

	t.Run("drink with a size", func(t *testing.T) {
		_, err := catalog.BuildLine(cola(), catalog.LineRequest{Quantity: 1, Size: pricing.SizeSmall})
		requireReason(t, err, pricing.CodeSizeRequiredForPizza)
	})

	t.Run("drink with toppings", func(t *testing.T) {
		_, err := catalog.BuildLine(cola(), catalog.LineRequest{Quantity: 1, Toppings: []string{"olives"}})
		requireReason(t, err, pricing.CodeSizeRequiredForPizza)
	})

	t.Run("drink uses base price", func(t *testing.T) {
		li, err := catalog.BuildLine(cola(), catalog.LineRequest{Quantity: 3, SpecialInstructions: "  no ice "})
		require.NoError(t, err)
		require.True(t, li.SelectedPrice.Equal(pricing.MustMoney("90")))
		require.Equal(t, "no ice", li.SpecialInstructions)
	})
}

func requireReason(t *testing.T, err error, code string) {
	t.Helper()
	var verr *pricing.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	require.Equal(t, code, verr.Code)
}

func TestNormalizeCategory(t *testing.T) {
	require.Equal(t, pricing.CategoryPizza, catalog.NormalizeCategory(" Pizza "))
	require.Equal(t, "drinks", catalog.NormalizeCategory("DRINKS"))
	require.Equal(t, "", catalog.NormalizeCategory("  "))
}
