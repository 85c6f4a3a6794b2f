package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bookstore-settlement/internal/shared/apperr"
)

// ===================================
// DOMAIN ERRORS
// ===================================

const (
	ErrCodeBookNotFound      = "INV001"
	ErrCodeOutOfStock        = "INV002"
	ErrCodeInvalidQuantity   = "INV003"
	ErrCodeNegativeStock     = "INV004"
	ErrCodeBookInactive      = "INV005"
	ErrCodeInvalidAdjustment = "INV006"
)

var (
	// ErrBookNotFound is returned when referenced book does not exist
	ErrBookNotFound = errors.New("book not found")

	// ErrInvalidQuantity is returned for zero or negative quantities
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// InventoryError is returned by reservation and stock adjustment.
type InventoryError struct {
	Code    string
	Message string
	Kind    error
	BookID  uuid.UUID
	Err     error
}

func (e *InventoryError) Error() string {
	msg := e.Message
	if e.BookID != uuid.Nil {
		msg = fmt.Sprintf("%s (book_id=%s)", msg, e.BookID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *InventoryError) Unwrap() error { return e.Err }

func (e *InventoryError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewOutOfStockError reports that qty could not be reserved for bookID.
func NewOutOfStockError(bookID uuid.UUID, requested int) *InventoryError {
	return &InventoryError{
		Code:    ErrCodeOutOfStock,
		Message: fmt.Sprintf("insufficient stock for %d unit(s)", requested),
		Kind:    apperr.ErrOutOfStock,
		BookID:  bookID,
	}
}

func NewBookNotFoundError(bookID uuid.UUID) *InventoryError {
	return &InventoryError{
		Code:    ErrCodeBookNotFound,
		Message: "book not found",
		Kind:    apperr.ErrNotFound,
		BookID:  bookID,
		Err:     ErrBookNotFound,
	}
}

func NewInvalidQuantityError(bookID uuid.UUID, qty int) *InventoryError {
	return &InventoryError{
		Code:    ErrCodeInvalidQuantity,
		Message: fmt.Sprintf("invalid quantity %d", qty),
		Kind:    apperr.ErrValidation,
		BookID:  bookID,
		Err:     ErrInvalidQuantity,
	}
}

// IsOutOfStock checks whether err is an out-of-stock failure
func IsOutOfStock(err error) bool {
	return errors.Is(err, apperr.ErrOutOfStock)
}
