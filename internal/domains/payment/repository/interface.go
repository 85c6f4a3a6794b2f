package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookstore-settlement/internal/domains/payment/model"
)

// =====================================================
// PAYMENT REPOSITORY INTERFACE
// =====================================================
type PaymentRepository interface {
	// ============================================
	// TRANSACTION-AWARE METHODS
	// ============================================

	// CreateWithTx inserts a PENDING payment. Returns
	// model.ErrPendingPaymentExists if the order already has one.
	CreateWithTx(ctx context.Context, tx pgx.Tx, payment *model.Payment) error

	// UpdateWithTx persists status, gateway fields and timestamps.
	UpdateWithTx(ctx context.Context, tx pgx.Tx, payment *model.Payment) error

	GetByTxnRefForUpdateWithTx(ctx context.Context, tx pgx.Tx, txnRef string) (*model.Payment, error)
	GetByCodeForUpdateWithTx(ctx context.Context, tx pgx.Tx, code string) (*model.Payment, error)
	GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Payment, error)

	// FindPendingByOrderForUpdateWithTx locks the order's PENDING payment.
	// Returns (nil, nil) when there is none.
	FindPendingByOrderForUpdateWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*model.Payment, error)

	// HasPendingWithTx reports whether the order has a PENDING payment,
	// expired or not.
	HasPendingWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)

	CountByOrderWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error)

	// AppendTransactionWithTx is the only write path for the audit log.
	AppendTransactionWithTx(ctx context.Context, tx pgx.Tx, txn *model.PaymentTransaction) error

	// ============================================
	// STANDALONE METHODS
	// ============================================

	GetByCode(ctx context.Context, code string) (*model.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
	ListTransactions(ctx context.Context, paymentID uuid.UUID) ([]model.PaymentTransaction, error)

	// ListExpiredPendingIDs returns PENDING payments whose expires_at < now,
	// oldest first.
	ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)

	// LogWebhook stores a raw inbound callback outside any business tx so
	// it survives rollbacks.
	LogWebhook(ctx context.Context, log *model.WebhookLog) error
}
