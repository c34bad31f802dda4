package pricing

import "github.com/shopspring/decimal"

// Money is a monetary amount in the restaurant currency.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Round2 rounds half-up to two decimal places. Amounts handled by the engine are
// never negative, so decimal's half-away-from-zero rounding is half-up here.
func Round2(v Money) Money {
	return v.Round(2)
}

// NonNegative clamps v at zero.
func NonNegative(v Money) Money {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// MustMoney parses a decimal literal and panics on malformed input. Intended for
// constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}
