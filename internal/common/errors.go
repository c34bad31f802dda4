package common

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *AppError) ProblemCode() string { return e.Code }
func (e *AppError) ProblemStatus() int  { return e.HTTPStatus }
func (e *AppError) ProblemDetails() any { return e.Details }

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// PayloadTooLarge reports a request body over limit bytes.
func PayloadTooLarge(limit int64) *AppError {
	appErr := NewAppError("PAYLOAD_TOO_LARGE", "request entity too large", http.StatusRequestEntityTooLarge, nil)
	appErr.Details = map[string]any{"maxBytes": limit}
	return appErr
}

// Problem is implemented by domain errors that know how they should be
// rendered to API clients.
type Problem interface {
	error
	ProblemCode() string
	ProblemStatus() int
	ProblemDetails() any
}

// WriteError renders err using the canonical error shape. Errors that do not
// implement Problem are logged and reported as INTERNAL without their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var p Problem
	if errors.As(err, &p) {
		status := p.ProblemStatus()
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message := p.Error()
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			message = appErr.Message
		}
		JSONError(w, status, p.ProblemCode(), message, p.ProblemDetails())
		return
	}
	if r != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}
