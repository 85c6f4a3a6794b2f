// Package apperr holds the error kinds shared by every domain of the
// settlement engine. Domain error types (OrderError, PaymentError,
// InventoryError) carry one of these kinds so callers can branch with
// errors.Is without importing each other's model packages.
package apperr

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrOutOfStock         = errors.New("out of stock")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrLimit     = errors.New("limit exceeded")
)

// KindOf returns the first taxonomy kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrValidation,
		ErrOutOfStock,
		ErrSignatureInvalid,
		ErrUnknownTransaction,
		ErrInvalidTransition,
		ErrGatewayUnavailable,
		ErrNotFound,
		ErrForbidden,
		ErrConflict,
		ErrLimit,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
