package promotion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no promotion matches the code or id.
	ErrNotFound = errors.New("promotion not found")
	// ErrInactive indicates the promotion was switched off by an administrator.
	ErrInactive = errors.New("promotion inactive")
	// ErrNotStarted indicates the validity window has not opened yet.
	ErrNotStarted = errors.New("promotion not started")
	// ErrExpired indicates the validity window has closed.
	ErrExpired = errors.New("promotion expired")
	// ErrLimitReached indicates the promotion has exhausted its usage cap.
	ErrLimitReached = errors.New("promotion usage limit reached")
	// ErrBelowMinimum indicates the cart subtotal is under the minimum order value.
	ErrBelowMinimum = errors.New("promotion minimum order value not met")
	// ErrCodeTaken is returned by stores when a code already exists.
	ErrCodeTaken = errors.New("promotion code already exists")
	// ErrLimitBelowUsage is returned when an update would set the usage limit
	// below the number of redemptions already recorded.
	ErrLimitBelowUsage = errors.New("usage limit is below the current usage count")
)

// Error codes carried by *Error.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInactive     = "INACTIVE"
	CodeNotStarted   = "NOT_STARTED"
	CodeExpired      = "EXPIRED"
	CodeLimitReached = "LIMIT_REACHED"
	CodeBelowMinimum = "BELOW_MINIMUM"
)

var codes = map[error]string{
	ErrNotFound:     CodeNotFound,
	ErrInactive:     CodeInactive,
	ErrNotStarted:   CodeNotStarted,
	ErrExpired:      CodeExpired,
	ErrLimitReached: CodeLimitReached,
	ErrBelowMinimum: CodeBelowMinimum,
}

// Error is an expected, user-facing reason a promotion cannot be used. It wraps
// one of the package sentinels so callers can match with errors.Is.
type Error struct {
	Code      string
	Message   string
	Shortfall decimal.Decimal
	err       error
}

// NewError builds an Error for one of the package sentinels.
func NewError(kind error, message string) *Error {
	return &Error{Code: codes[kind], Message: message, err: kind}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *Error) ProblemCode() string { return e.Code }
func (e *Error) ProblemStatus() int {
	if e.Code == CodeNotFound {
		return http.StatusNotFound
	}
	return http.StatusUnprocessableEntity
}

func (e *Error) ProblemDetails() any {
	if e.Code != CodeBelowMinimum {
		return nil
	}
	return map[string]string{"shortfall": e.Shortfall.StringFixed(2)}
}

func notFound(code string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("promotion %q does not exist", code))
}

func belowMinimum(shortfall decimal.Decimal) *Error {
	e := NewError(ErrBelowMinimum, fmt.Sprintf("add %s more to use this offer", shortfall.StringFixed(2)))
	e.Shortfall = shortfall
	return e
}
