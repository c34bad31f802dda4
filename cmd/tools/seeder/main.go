package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-resto/internal/auth"
	"github.com/noah-isme/backend-resto/internal/catalog"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/pricing"
	"github.com/noah-isme/backend-resto/internal/promotion"
	"github.com/noah-isme/backend-resto/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "resto-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	menu := &catalog.Store{DB: pool}
	for _, item := range menuItems() {
		if err := menu.Upsert(ctx, item); err != nil {
			logger.Fatal().Err(err).Str("item", item.ID).Msg("seed menu item")
		}
	}
	logger.Info().Int("count", len(menuItems())).Msg("menu seeded")

	promotions := &promotion.Store{DB: pool}
	for _, p := range demoPromotions(time.Now().UTC()) {
		if _, err := promotions.Create(ctx, p); err != nil {
			if errors.Is(err, promotion.ErrCodeTaken) {
				logger.Info().Str("code", p.Code).Msg("promotion exists, skipping")
				continue
			}
			logger.Fatal().Err(err).Str("code", p.Code).Msg("seed promotion")
		}
	}

	current, err := (&settings.Store{DB: pool}).Current(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed settings")
	}
	logger.Info().
		Str("tax_rate", current.TaxRate.String()).
		Str("delivery_fee", current.DeliveryFee.String()).
		Str("free_delivery_threshold", current.FreeDeliveryThreshold.String()).
		Msg("settings ready")

	if len(os.Args) > 1 && os.Args[1] == "-tokens" {
		issueDemoTokens(cfg, logger)
	}
	logger.Info().Msg("seeding completed")
}

func issueDemoTokens(cfg *config.Config, logger zerolog.Logger) {
	v := auth.Verifier{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer}
	for _, demo := range []struct{ subject, role string }{
		{"demo-customer", auth.RoleCustomer},
		{"demo-admin", auth.RoleAdmin},
	} {
		token, err := v.Issue(demo.subject, demo.role, 24*time.Hour)
		if err != nil {
			logger.Fatal().Err(err).Msg("issue demo token")
		}
		logger.Info().Str("subject", demo.subject).Str("role", demo.role).Str("token", token).Msg("demo token")
	}
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func price(v string) *decimal.Decimal {
	d := money(v)
	return &d
}

func intPtr(v int) *int { return &v }

func pizzaToppings() []pricing.Topping {
	return []pricing.Topping{
		{Name: "Jalapenos", Category: pricing.ToppingVegetables, Price: money("40")},
		{Name: "Olives", Category: pricing.ToppingVegetables, Price: money("35")},
		{Name: "Mushrooms", Category: pricing.ToppingVegetables, Price: money("35")},
		{Name: "Pepperoni", Category: pricing.ToppingMeat, Price: money("70")},
		{Name: "Grilled Chicken", Category: pricing.ToppingMeat, Price: money("80")},
		{Name: "Extra Mozzarella", Category: pricing.ToppingCheese, Price: money("60")},
		{Name: "Cheddar", Category: pricing.ToppingCheese, Price: money("50")},
		{Name: "Peri Peri", Category: pricing.ToppingSauce, Price: money("25")},
	}
}

func menuItems() []catalog.MenuItem {
	return []catalog.MenuItem{
		{
			ID: "pz-margherita", Name: "Margherita", Category: pricing.CategoryPizza, BasePrice: money("299"),
			Sizes:    catalog.SizePrices{Small: price("299"), Medium: price("449"), Large: price("599")},
			Toppings: pizzaToppings(), Available: true,
		},
		{
			ID: "pz-farmhouse", Name: "Farmhouse", Category: pricing.CategoryPizza, BasePrice: money("399"),
			Sizes:    catalog.SizePrices{Small: price("399"), Medium: price("599"), Large: price("799")},
			Toppings: pizzaToppings(), Available: true,
		},
		{
			ID: "pz-pepperoni", Name: "Pepperoni Feast", Category: pricing.CategoryPizza, BasePrice: money("449"),
			Sizes:    catalog.SizePrices{Medium: price("649"), Large: price("899")},
			Toppings: pizzaToppings(), Available: true,
		},
		{ID: "bv-cola", Name: "Cola", Category: "beverages", BasePrice: money("60"), Available: true},
		{ID: "bv-lemonade", Name: "Fresh Lemonade", Category: "beverages", BasePrice: money("90"), Available: true},
		{ID: "sd-garlic-bread", Name: "Garlic Bread", Category: "sides", BasePrice: money("149"), Available: true},
		{ID: "sd-wings", Name: "Chicken Wings", Category: "sides", BasePrice: money("249"), Available: false},
	}
}

func demoPromotions(now time.Time) []promotion.Promotion {
	return []promotion.Promotion{
		{
			Code: "WELCOME10", Title: "10% off your first order", Kind: promotion.KindPercentage,
			Value: money("10"), MaxDiscountCap: price("150"), MinOrderValue: money("300"),
			ValidFrom: now.Add(-time.Hour), ValidUntil: now.AddDate(0, 3, 0), IsActive: true,
		},
		{
			Code: "FLAT100", Title: "Flat 100 off", Kind: promotion.KindFlat,
			Value: money("100"), MinOrderValue: money("599"),
			ValidFrom: now.Add(-time.Hour), ValidUntil: now.AddDate(0, 1, 0), UsageLimit: intPtr(500), IsActive: true,
		},
		{
			Code: "LASTONE", Title: "Single-use demo", Kind: promotion.KindFlat,
			Value: money("50"), ValidFrom: now.Add(-time.Hour), ValidUntil: now.AddDate(0, 0, 7),
			UsageLimit: intPtr(1), IsActive: true,
		},
	}
}
