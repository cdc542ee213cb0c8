// Package errors provides the structured error taxonomy for the order book.
package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode identifies one of the closed set of book error kinds.
type ErrorCode string

const (
	// InvalidPrice means a price is off the tick grid or outside [min, max].
	InvalidPrice ErrorCode = "INVALID_PRICE"
	// InvalidSize means a size was zero.
	InvalidSize ErrorCode = "INVALID_SIZE"
	// InvalidOrderType means a condition was attached to an incompatible
	// order type (e.g. OCO on a market order, FOK on a stop).
	InvalidOrderType ErrorCode = "INVALID_ORDER_TYPE"
	// AdvancedTicketMalformed means an advanced ticket's fields contradict
	// each other (loss_limit on the wrong side of loss_stop, nticks larger
	// than the distance to the grid edge, two stops at the same price
	// within an OCO, etc).
	AdvancedTicketMalformed ErrorCode = "ADVANCED_TICKET_MALFORMED"
	// OrderNotFound means an id was not present in the lookup cache.
	OrderNotFound ErrorCode = "ORDER_NOT_FOUND"
	// LiquidityExhausted means a market order could not be fully filled.
	LiquidityExhausted ErrorCode = "LIQUIDITY_EXHAUSTED"
	// DerivedPrice means a computed trailing/bracket price fell outside
	// the grid.
	DerivedPrice ErrorCode = "DERIVED_PRICE"
	// ResourceExhausted means a grow or allocation would exceed the
	// configured memory cap.
	ResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
)

// BookError is a structured error carrying a code, a human message, and
// optional details plus the originating site.
type BookError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	File    string
	Line    int
	Cause   error
}

func (e *BookError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *BookError) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value detail and returns the same error for
// chaining.
func (e *BookError) WithDetail(key string, value interface{}) *BookError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a BookError, capturing the caller's file/line.
func New(code ErrorCode, message string) *BookError {
	_, file, line, _ := runtime.Caller(1)
	return &BookError{Code: code, Message: message, File: file, Line: line}
}

// Newf creates a BookError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *BookError {
	_, file, line, _ := runtime.Caller(1)
	return &BookError{Code: code, Message: fmt.Sprintf(format, args...), File: file, Line: line}
}

// Wrap wraps an existing error with a BookError of the given code.
func Wrap(err error, code ErrorCode, message string) *BookError {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &BookError{Code: code, Message: message, File: file, Line: line, Cause: err}
}

// Is reports whether err is a *BookError with the given code.
func Is(err error, code ErrorCode) bool {
	var be *BookError
	if As(err, &be) {
		return be.Code == code
	}
	return false
}

// As finds the first *BookError in err's chain and assigns it to target.
func As(err error, target **BookError) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BookError); ok {
		*target = be
		return true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return As(u.Unwrap(), target)
	}
	return false
}

// LiquidityExhaustedDetails captures the structured payload for a
// LiquidityExhausted error.
type LiquidityExhaustedDetails struct {
	Initial   uint64
	Remaining uint64
	ID        uint64
}

// NewLiquidityExhausted builds the LiquidityExhausted error with its
// required structured payload.
func NewLiquidityExhausted(initial, remaining, id uint64) *BookError {
	_, file, line, _ := runtime.Caller(1)
	return &BookError{
		Code:    LiquidityExhausted,
		Message: fmt.Sprintf("order %d could not be fully filled: %d of %d remaining", id, remaining, initial),
		File:    file,
		Line:    line,
		Details: map[string]interface{}{
			"initial":   initial,
			"remaining": remaining,
			"id":        id,
		},
	}
}
