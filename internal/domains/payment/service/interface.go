package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/payment/model"
)

// SweeperHeartbeatKey holds the last SweepResult in the cache.
const SweeperHeartbeatKey = "payment:sweeper:last_run"

// PaymentService defines the settlement operations.
type PaymentService interface {
	// User operations
	CreatePayment(ctx context.Context, userID uuid.UUID, req model.CreatePaymentRequest, clientIP string) (*model.CreatePaymentResponse, error)
	GetPayment(ctx context.Context, userID uuid.UUID, paymentCode string) (*model.Payment, error)
	ListOrderPayments(ctx context.Context, userID, orderID uuid.UUID) ([]model.Payment, error)

	// Gateway callbacks (return URL and IPN)
	HandleCallback(ctx context.Context, channel model.Channel, params map[string]string, clientIP string) (*model.CallbackResult, error)

	// Admin operations
	Refund(ctx context.Context, req model.RefundRequest, clientIP string) (*model.RefundResult, error)
	CheckStatus(ctx context.Context, paymentCode string, clientIP string) (*model.StatusCheckResult, error)
	ListTransactions(ctx context.Context, paymentCode string) ([]model.PaymentTransaction, error)

	// Background
	SweepExpired(ctx context.Context, now time.Time, batchSize int) (*model.SweepResult, error)
	LastSweep(ctx context.Context) (*model.SweepResult, error)
}

// Settings are the tunables taken from config.
type Settings struct {
	PaymentTTL     time.Duration
	MaxAttempts    int
	SweepBatchSize int
	// AbandonedAfter is the idle time after which a PENDING_PAYMENT order
	// with no open payment is cancelled by the sweeper.
	AbandonedAfter time.Duration
}

func (s *Settings) applyDefaults() {
	if s.PaymentTTL <= 0 {
		s.PaymentTTL = model.DefaultPaymentTTL
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = model.DefaultMaxPaymentAttempts
	}
	if s.SweepBatchSize <= 0 {
		s.SweepBatchSize = 100
	}
	if s.AbandonedAfter <= 0 {
		s.AbandonedAfter = s.PaymentTTL
	}
}
