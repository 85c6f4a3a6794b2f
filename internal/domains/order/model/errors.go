package model

import (
	"errors"

	"bookstore-settlement/internal/shared/apperr"
)

// =====================================================
// CUSTOM ERROR CODES
// =====================================================
const (
	ErrCodeOrderNotFound     = "ORD001"
	ErrCodeInvalidTransition = "ORD002"
	ErrCodeVersionMismatch   = "ORD003"
	ErrCodeOutOfStock        = "ORD004"
	ErrCodeStalePrice        = "ORD005"
	ErrCodeCartEmpty         = "ORD006"
	ErrCodeInvalidQuantity   = "ORD007"
	ErrCodeInvalidAddress    = "ORD008"
	ErrCodeUnauthorized      = "ORD009"
	ErrCodeBookUnavailable   = "ORD010"
	ErrCodeInvalidTotals     = "ORD011"
	ErrCodePendingPayment    = "ORD012"
	ErrCodeDuplicateRequest  = "ORD013"
)

// =====================================================
// ERROR DEFINITIONS
// =====================================================
var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionMismatch = errors.New("version mismatch - concurrent modification detected")
	ErrCartEmpty       = errors.New("cart is empty")
)

// =====================================================
// CUSTOM ERROR TYPE
// =====================================================

// OrderError carries a stable code for API clients and a taxonomy kind
// from apperr so errors.Is(err, apperr.ErrOutOfStock) works.
type OrderError struct {
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func (e *OrderError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewOrderError creates a new OrderError
func NewOrderError(code string, kind error, message string, err error) *OrderError {
	return &OrderError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Err:     err,
	}
}

func NewValidationError(code, message string) *OrderError {
	return NewOrderError(code, apperr.ErrValidation, message, nil)
}

func NewTransitionError(from, to Status) *OrderError {
	return NewOrderError(ErrCodeInvalidTransition, apperr.ErrInvalidTransition,
		"cannot move order from "+string(from)+" to "+string(to), nil)
}
