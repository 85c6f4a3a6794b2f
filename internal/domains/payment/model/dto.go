package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// REQUEST DTOs
// =====================================================

type CreatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

func (r CreatePaymentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrderID, validation.Required, is.UUID),
	)
}

// RefundRequest refunds a completed payment. A nil Amount means a full refund.
type RefundRequest struct {
	PaymentCode string           `json:"-"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Reason      string           `json:"reason"`
	AdminID     uuid.UUID        `json:"-"`
}

func (r RefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PaymentCode, validation.Required),
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
		validation.Field(&r.Amount, validation.By(func(value interface{}) error {
			amt, _ := value.(*decimal.Decimal)
			if amt != nil && !amt.IsPositive() {
				return validation.NewError("validation_amount_positive", "must be greater than zero")
			}
			return nil
		})),
	)
}

// =====================================================
// RESPONSE DTOs
// =====================================================

type CreatePaymentResponse struct {
	Payment    *Payment `json:"payment"`
	PaymentURL string   `json:"payment_url"`
	// Reused is true when an existing live payment was returned again.
	Reused bool `json:"reused"`
}

type CallbackResult struct {
	PaymentCode      string    `json:"payment_code"`
	OrderID          uuid.UUID `json:"order_id"`
	Status           Status    `json:"status"`
	ResponseCode     string    `json:"response_code"`
	Message          string    `json:"message"`
	AlreadyProcessed bool      `json:"already_processed"`
}

type RefundResult struct {
	Payment             *Payment        `json:"payment"`
	RefundedAmount      decimal.Decimal `json:"refunded_amount"`
	FullRefund          bool            `json:"full_refund"`
	GatewayRefundNo     string          `json:"gateway_refund_no,omitempty"`
	GatewayResponseCode string          `json:"gateway_response_code,omitempty"`
}

type StatusCheckResult struct {
	Payment       *Payment `json:"payment"`
	GatewayStatus string   `json:"gateway_status"`
	ResponseCode  string   `json:"response_code"`
	Changed       bool     `json:"changed"`
}

// SweepResult summarises one expiration sweep. It is also the sweeper
// heartbeat stored in the cache.
type SweepResult struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Scanned         int       `json:"scanned"`
	Expired         int       `json:"expired"`
	Skipped         int       `json:"skipped"`
	OrdersCancelled int       `json:"orders_cancelled"`
	Abandoned       int       `json:"abandoned"`
	Errors          int       `json:"errors"`
}

// SweeperStatus is what the health endpoints report about the sweeper.
type SweeperStatus struct {
	LastRun *time.Time `json:"sweeper_last_run"`
	NextRun *time.Time `json:"sweeper_next_run"`
	Stale   bool       `json:"stale"`
	Errors  int        `json:"last_errors"`
}
