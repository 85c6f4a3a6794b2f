package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT TRANSACTION (append-only audit log)
// =====================================================

type TransactionType string

const (
	TxnTypePayment     TransactionType = "PAYMENT"
	TxnTypeRefund      TransactionType = "REFUND"
	TxnTypeWebhook     TransactionType = "WEBHOOK"
	TxnTypeStatusCheck TransactionType = "STATUS_CHECK"
	TxnTypeTimeout     TransactionType = "TIMEOUT"
)

// TransactionStatus is the outcome of one gateway interaction.
type TransactionStatus string

const (
	TxnStatusSuccess   TransactionStatus = "SUCCESS"
	TxnStatusFailed    TransactionStatus = "FAILED"
	TxnStatusDuplicate TransactionStatus = "DUPLICATE"
	TxnStatusRejected  TransactionStatus = "REJECTED"
	TxnStatusPending   TransactionStatus = "PENDING"
)

// PaymentTransaction is write-once; repositories expose no update or delete.
type PaymentTransaction struct {
	ID              uuid.UUID              `json:"id"`
	PaymentID       uuid.UUID              `json:"payment_id"`
	Type            TransactionType        `json:"type"`
	Status          TransactionStatus      `json:"status"`
	Amount          decimal.Decimal        `json:"amount"`
	ResponseCode    *string                `json:"response_code,omitempty"`
	GatewayResponse map[string]interface{} `json:"gateway_response,omitempty"`
	Note            string                 `json:"note,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

func NewTransaction(p *Payment, typ TransactionType, status TransactionStatus, raw map[string]interface{}, note string, now time.Time) *PaymentTransaction {
	t := &PaymentTransaction{
		ID:              uuid.New(),
		PaymentID:       p.ID,
		Type:            typ,
		Status:          status,
		Amount:          p.Amount,
		GatewayResponse: raw,
		Note:            note,
		CreatedAt:       now,
	}
	if code, ok := raw["vnp_ResponseCode"].(string); ok && code != "" {
		t.ResponseCode = &code
	}
	return t
}

// =====================================================
// WEBHOOK LOG (every inbound callback, valid or not)
// =====================================================

type WebhookLog struct {
	ID              uuid.UUID              `json:"id"`
	Gateway         string                 `json:"gateway"`
	Channel         Channel                `json:"channel"`
	TxnRef          string                 `json:"txn_ref"`
	Params          map[string]interface{} `json:"params"`
	ClientIP        string                 `json:"client_ip"`
	IsValid         bool                   `json:"is_valid"`
	ProcessingError *string                `json:"processing_error,omitempty"`
	ReceivedAt      time.Time              `json:"received_at"`
}

// StringParams converts raw callback params for JSONB storage.
func StringParams(params map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
