package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookstore-settlement/internal/domains/payment/model"
)

const (
	uniqueViolation      = "23505"
	pendingPerOrderIndex = "uq_payments_one_pending_per_order"
)

// =====================================================
// PAYMENT REPOSITORY IMPLEMENTATION
// =====================================================
type paymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepository{pool: pool}
}

const paymentColumns = `
	id, payment_code, order_id, user_id, gateway, amount, currency, txn_ref, status,
	gateway_transaction_no, bank_code, response_code, refunded_amount,
	expires_at, paid_at, failed_at, expired_at, refunded_at, created_at, updated_at
`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.PaymentCode,
		&p.OrderID,
		&p.UserID,
		&p.Gateway,
		&p.Amount,
		&p.Currency,
		&p.TxnRef,
		&p.Status,
		&p.GatewayTransactionNo,
		&p.BankCode,
		&p.ResponseCode,
		&p.RefundedAmount,
		&p.ExpiresAt,
		&p.PaidAt,
		&p.FailedAt,
		&p.ExpiredAt,
		&p.RefundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}

// =====================================================
// TRANSACTION-AWARE METHODS
// =====================================================

func (r *paymentRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *model.Payment) error {
	query := `
		INSERT INTO payments (
			id, payment_code, order_id, user_id, gateway, amount, currency,
			txn_ref, status, refunded_amount, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
		)
	`
	_, err := tx.Exec(ctx, query,
		p.ID,
		p.PaymentCode,
		p.OrderID,
		p.UserID,
		p.Gateway,
		p.Amount,
		p.Currency,
		p.TxnRef,
		p.Status,
		p.RefundedAmount,
		p.ExpiresAt,
		p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == pendingPerOrderIndex {
			return model.ErrPendingPaymentExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (r *paymentRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, p *model.Payment) error {
	query := `
		UPDATE payments
		SET status = $1,
			gateway_transaction_no = $2,
			bank_code = $3,
			response_code = $4,
			refunded_amount = $5,
			paid_at = $6,
			failed_at = $7,
			expired_at = $8,
			refunded_at = $9,
			updated_at = $10
		WHERE id = $11
	`
	result, err := tx.Exec(ctx, query,
		p.Status,
		p.GatewayTransactionNo,
		p.BankCode,
		p.ResponseCode,
		p.RefundedAmount,
		p.PaidAt,
		p.FailedAt,
		p.ExpiredAt,
		p.RefundedAt,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) GetByTxnRefForUpdateWithTx(ctx context.Context, tx pgx.Tx, txnRef string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE txn_ref = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, txnRef))
}

func (r *paymentRepository) GetByCodeForUpdateWithTx(ctx context.Context, tx pgx.Tx, code string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_code = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, code))
}

func (r *paymentRepository) GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, id))
}

func (r *paymentRepository) FindPendingByOrderForUpdateWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 AND status = 'PENDING' FOR UPDATE`
	p, err := scanPayment(tx.QueryRow(ctx, query, orderID))
	if errors.Is(err, model.ErrPaymentNotFound) {
		return nil, nil
	}
	return p, err
}

func (r *paymentRepository) HasPendingWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status = 'PENDING')`
	var exists bool
	if err := tx.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending payment: %w", err)
	}
	return exists, nil
}

func (r *paymentRepository) CountByOrderWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE order_id = $1`, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *paymentRepository) AppendTransactionWithTx(ctx context.Context, tx pgx.Tx, t *model.PaymentTransaction) error {
	raw, err := json.Marshal(t.GatewayResponse)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway_response: %w", err)
	}

	query := `
		INSERT INTO payment_transactions (
			id, payment_id, type, status, amount, response_code, gateway_response, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, query,
		t.ID,
		t.PaymentID,
		t.Type,
		t.Status,
		t.Amount,
		t.ResponseCode,
		raw,
		t.Note,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append payment transaction: %w", err)
	}
	return nil
}

// =====================================================
// STANDALONE METHODS
// =====================================================

func (r *paymentRepository) GetByCode(ctx context.Context, code string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_code = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, code))
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *paymentRepository) ListTransactions(ctx context.Context, paymentID uuid.UUID) ([]model.PaymentTransaction, error) {
	query := `
		SELECT id, payment_id, type, status, amount, response_code, gateway_response, note, created_at
		FROM payment_transactions
		WHERE payment_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.PaymentTransaction
	for rows.Next() {
		var (
			t   model.PaymentTransaction
			raw []byte
		)
		if err := rows.Scan(&t.ID, &t.PaymentID, &t.Type, &t.Status, &t.Amount,
			&t.ResponseCode, &raw, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &t.GatewayResponse); err != nil {
				return nil, fmt.Errorf("failed to unmarshal gateway_response: %w", err)
			}
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (r *paymentRepository) ListExpiredPendingIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM payments
		WHERE status = 'PENDING' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired payments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan payment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *paymentRepository) LogWebhook(ctx context.Context, log *model.WebhookLog) error {
	params, err := json.Marshal(log.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook params: %w", err)
	}

	query := `
		INSERT INTO payment_webhook_logs (
			id, gateway, channel, txn_ref, params, client_ip, is_valid, processing_error, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		log.ID,
		log.Gateway,
		log.Channel,
		log.TxnRef,
		params,
		log.ClientIP,
		log.IsValid,
		log.ProcessingError,
		log.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}
