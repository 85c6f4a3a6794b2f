package model

import (
	"errors"
	"fmt"

	"bookstore-settlement/internal/shared/apperr"
)

// =====================================================
// REPOSITORY SENTINELS
// =====================================================
var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPendingPaymentExists = errors.New("order already has a pending payment")
)

// =====================================================
// PAYMENT ERROR
// =====================================================

type PaymentError struct {
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func (e *PaymentError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func NewPaymentError(code string, kind error, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Err:     err,
	}
}

// =====================================================
// PREDEFINED ERRORS
// =====================================================

func ErrSignatureInvalid(reason string) *PaymentError {
	return NewPaymentError(ErrCodeInvalidSignature, apperr.ErrSignatureInvalid,
		"invalid gateway signature: "+reason, nil)
}

func ErrUnknownTransaction(txnRef string) *PaymentError {
	return NewPaymentError(ErrCodeUnknownTransaction, apperr.ErrUnknownTransaction,
		"unknown transaction reference "+txnRef, nil)
}

func ErrInvalidTransition(from, to Status) *PaymentError {
	return NewPaymentError(ErrCodeInvalidTransition, apperr.ErrInvalidTransition,
		fmt.Sprintf("cannot move payment from %s to %s", from, to), nil)
}

func ErrGatewayUnavailable(op string, err error) *PaymentError {
	return NewPaymentError(ErrCodeGatewayUnavailable, apperr.ErrGatewayUnavailable,
		"payment gateway unavailable during "+op, err)
}

func ErrAmountMismatch(expected, got string) *PaymentError {
	return NewPaymentError(ErrCodeAmountMismatch, apperr.ErrValidation,
		fmt.Sprintf("callback amount %s does not match payment amount %s", got, expected), nil)
}

func ErrNotFound(code string) *PaymentError {
	return NewPaymentError(ErrCodePaymentNotFound, apperr.ErrNotFound,
		"payment "+code+" not found", ErrPaymentNotFound)
}
