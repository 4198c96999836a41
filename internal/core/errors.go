// internal/core/errors.go
package core

import (
	"context"
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// FromContext maps a context error onto ErrCanceled, passing other errors through.
func FromContext(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return WrapError(ErrCanceled, err)
	}
	return err
}

// Predefined errors
var (
	// Request errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrNotFound      = &Error{Code: "NOT_FOUND", Message: "resource not found"}

	// Data errors
	ErrDataSource       = &Error{Code: "DATA_SOURCE", Message: "market data source failed"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "no observations to simulate"}

	// Live trading errors
	ErrEngineUnavailable = &Error{Code: "ENGINE_UNAVAILABLE", Message: "engine unavailable"}
	ErrOrderRejected     = &Error{Code: "ORDER_REJECTED", Message: "order rejected"}
	ErrTradingHalted     = &Error{Code: "TRADING_HALTED", Message: "trading halted"}

	ErrCanceled = &Error{Code: "CANCELED", Message: "operation canceled"}
)
