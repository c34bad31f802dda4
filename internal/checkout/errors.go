package checkout

import (
	"errors"
	"net/http"
)

// ErrEmptyCart is returned when a customer checks out a cart with no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// CodePromotionJustRedeemed is reported when the last redemption of a promotion
// was taken by a concurrent checkout after this cart was quoted.
const CodePromotionJustRedeemed = "PROMOTION_JUST_REDEEMED"

// ConcurrencyError means the usage ledger refused a promotion the evaluator had
// just approved. Retrying the same checkout will not help; the customer should
// pick another offer or remove the code.
type ConcurrencyError struct {
	PromotionCode string
	err           error
}

func (e *ConcurrencyError) Error() string {
	return "promotion " + e.PromotionCode + " was just fully redeemed by another order"
}

func (e *ConcurrencyError) Unwrap() error { return e.err }

func (e *ConcurrencyError) ProblemCode() string { return CodePromotionJustRedeemed }
func (e *ConcurrencyError) ProblemStatus() int  { return http.StatusConflict }
func (e *ConcurrencyError) ProblemDetails() any {
	return map[string]string{"promotionCode": e.PromotionCode}
}
