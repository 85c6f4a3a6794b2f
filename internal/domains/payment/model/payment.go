package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// PAYMENT STATUS
// =====================================================

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
	// StatusRefunded marks a completed payment that was (fully or partially)
	// paid back. Terminal.
	StatusRefunded Status = "REFUNDED"
)

var paymentTransitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed, StatusExpired},
	StatusCompleted: {StatusRefunded},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal is true once no callback may change the payment any more.
// COMPLETED counts as terminal for callbacks even though an admin refund
// can still move it to REFUNDED.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// =====================================================
// PAYMENT ENTITY
// =====================================================

type Payment struct {
	ID          uuid.UUID       `json:"id"`
	PaymentCode string          `json:"payment_code"`
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Gateway     string          `json:"gateway"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	// TxnRef correlates the outbound redirect with every inbound callback.
	TxnRef string `json:"txn_ref"`
	Status Status `json:"status"`

	GatewayTransactionNo *string `json:"gateway_transaction_no,omitempty"`
	BankCode             *string `json:"bank_code,omitempty"`
	ResponseCode         *string `json:"response_code,omitempty"`

	RefundedAmount decimal.Decimal `json:"refunded_amount"`

	ExpiresAt  time.Time  `json:"expires_at"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	FailedAt   *time.Time `json:"failed_at,omitempty"`
	ExpiredAt  *time.Time `json:"expired_at,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the TTL has passed. A PENDING payment past its
// TTL is still PENDING until the sweeper (or a late callback) resolves it.
func (p *Payment) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// IsLive is a PENDING payment still inside its TTL.
func (p *Payment) IsLive(now time.Time) bool {
	return p.Status == StatusPending && !p.IsExpired(now)
}

func (p *Payment) to(next Status, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidTransition(p.Status, next)
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// Complete applies a successful gateway callback.
func (p *Payment) Complete(gatewayTxnNo, bankCode, responseCode string, now time.Time) error {
	if err := p.to(StatusCompleted, now); err != nil {
		return err
	}
	p.PaidAt = &now
	p.setGatewayFields(gatewayTxnNo, bankCode, responseCode)
	return nil
}

// Fail applies a non-success gateway callback.
func (p *Payment) Fail(gatewayTxnNo, bankCode, responseCode string, now time.Time) error {
	if err := p.to(StatusFailed, now); err != nil {
		return err
	}
	p.FailedAt = &now
	p.setGatewayFields(gatewayTxnNo, bankCode, responseCode)
	return nil
}

// Expire is called by the sweeper once ExpiresAt has passed.
func (p *Payment) Expire(now time.Time) error {
	if !p.IsExpired(now) {
		return ErrInvalidTransition(p.Status, StatusExpired)
	}
	if err := p.to(StatusExpired, now); err != nil {
		return err
	}
	p.ExpiredAt = &now
	return nil
}

// Refund marks a completed payment as paid back by amount.
func (p *Payment) Refund(amount decimal.Decimal, now time.Time) error {
	if err := p.to(StatusRefunded, now); err != nil {
		return err
	}
	p.RefundedAmount = amount
	p.RefundedAt = &now
	return nil
}

// IsFullRefund reports whether amount pays back the whole payment.
func (p *Payment) IsFullRefund(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(p.Amount)
}

func (p *Payment) setGatewayFields(txnNo, bankCode, responseCode string) {
	if txnNo != "" {
		p.GatewayTransactionNo = &txnNo
	}
	if bankCode != "" {
		p.BankCode = &bankCode
	}
	if responseCode != "" {
		p.ResponseCode = &responseCode
	}
}
