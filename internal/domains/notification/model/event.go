package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ================================================
// OUTBOX EVENT
// ================================================

type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusSent       EventStatus = "sent"
	EventStatusFailed     EventStatus = "failed"
)

// MaxPublishAttempts is how many times the relay tries to hand an event to
// the queue before leaving it in failed for an operator.
const MaxPublishAttempts = 10

// OutboxEvent is written in the same transaction as the state change it
// describes and published later by the relay.
type OutboxEvent struct {
	ID            uuid.UUID       `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        EventStatus     `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
}

func NewOutboxEvent(aggregateType string, aggregateID uuid.UUID, eventType string, payload interface{}, now time.Time) (*OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Status:        EventStatusPending,
		CreatedAt:     now,
	}, nil
}

// ================================================
// PAYLOADS
// ================================================

const (
	AggregatePayment = "payment"
	AggregateOrder   = "order"
)

// PaymentEventPayload is the body of every payment.* event.
type PaymentEventPayload struct {
	PaymentCode    string           `json:"payment_code"`
	OrderID        uuid.UUID        `json:"order_id"`
	OrderCode      string           `json:"order_code,omitempty"`
	UserID         uuid.UUID        `json:"user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	Status         string           `json:"status"`
	ResponseCode   string           `json:"response_code,omitempty"`
	RefundedAmount *decimal.Decimal `json:"refunded_amount,omitempty"`
	OrderCancelled bool             `json:"order_cancelled,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// OrderEventPayload is the body of order.* events.
type OrderEventPayload struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderCode  string    `json:"order_code"`
	UserID     uuid.UUID `json:"user_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
)
