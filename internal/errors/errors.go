// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNoQuote              = errors.New("no quote available")
	ErrOrderNotFound        = errors.New("order not found")
)

// RejectError carries the order that was refused alongside the reason.
type RejectError struct {
	OrderID string
	Reason  string
	Err     error
}

func (e *RejectError) Error() string {
	if e.OrderID == "" {
		return e.Reason
	}
	return fmt.Sprintf("order %s rejected: %s", e.OrderID, e.Reason)
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

// NewRejectError creates a RejectError wrapping the matching sentinel.
func NewRejectError(orderID, reason string, sentinel error) *RejectError {
	return &RejectError{OrderID: orderID, Reason: reason, Err: sentinel}
}
