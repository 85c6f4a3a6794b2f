package model

import (
	"errors"

	"bookstore-settlement/internal/shared/apperr"
)

const (
	ErrCodeInvalidRequest  = "CRT001"
	ErrCodeLineNotFound    = "CRT002"
	ErrCodeBookUnavailable = "CRT003"
	ErrCodeQuantityLimit   = "CRT004"
)

var (
	ErrCartLineNotFound = errors.New("cart line not found")
)

type CartError struct {
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *CartError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CartError) Unwrap() error { return e.Err }

func (e *CartError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func NewCartError(code string, kind error, message string, err error) *CartError {
	return &CartError{Code: code, Message: message, Kind: kind, Err: err}
}

func NewValidationError(err error) *CartError {
	return NewCartError(ErrCodeInvalidRequest, apperr.ErrValidation, "invalid cart request", err)
}
