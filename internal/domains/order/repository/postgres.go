package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookstore-settlement/internal/domains/order/model"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================
type postgresOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &postgresOrderRepository{
		pool: pool,
	}
}

const orderColumns = `
	id, order_code, user_id,
	sub_total, shipping_fee, discount, tax, total, currency,
	status, payment_status, shipping_address, note,
	paid_at, cancelled_at, cancellation_reason, refunded_at, shipped_at, delivered_at,
	version, created_at, updated_at
`

// =====================================================
// CREATE ORDER
// =====================================================

func (r *postgresOrderRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping_address: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, order_code, user_id,
			sub_total, shipping_fee, discount, tax, total, currency,
			status, payment_status, shipping_address, note, version
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		order.ID,
		order.OrderCode,
		order.UserID,
		order.SubTotal,
		order.ShippingFee,
		order.Discount,
		order.Tax,
		order.Total,
		order.Currency,
		order.Status,
		order.PaymentStatus,
		addressJSON,
		order.Note,
		order.Version,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := r.insertItems(ctx, tx, order.Items); err != nil {
		return err
	}
	return r.insertHistory(ctx, tx, order.TakeHistory())
}

func (r *postgresOrderRepository) insertItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO order_items (
			id, order_id, book_id, title, isbn, quantity, unit_price, line_total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, it := range items {
		batch.Queue(query, it.ID, it.OrderID, it.BookID, it.Title, it.ISBN, it.Quantity, it.UnitPrice, it.LineTotal)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	for range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func (r *postgresOrderRepository) insertHistory(ctx context.Context, tx pgx.Tx, rows []model.OrderStatusHistory) error {
	query := `
		INSERT INTO order_status_history (
			id, order_id, from_status, to_status, changed_by, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, h := range rows {
		_, err := tx.Exec(ctx, query, h.ID, h.OrderID, h.FromStatus, h.ToStatus, h.ChangedBy, h.Reason, h.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create order status history: %w", err)
		}
	}
	return nil
}

// =====================================================
// GET ORDER
// =====================================================

func (r *postgresOrderRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, r.pool, order)
}

func (r *postgresOrderRepository) GetByCode(ctx context.Context, orderCode string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_code = $1`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderCode))
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, r.pool, order)
}

func (r *postgresOrderRepository) GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, tx, order)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *postgresOrderRepository) withItems(ctx context.Context, q querier, order *model.Order) (*model.Order, error) {
	query := `
		SELECT id, order_id, book_id, title, isbn, quantity, unit_price, line_total, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY book_id
	`
	rows, err := q.Query(ctx, query, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	order.Items = order.Items[:0]
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BookID, &it.Title, &it.ISBN,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return order, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		order       model.Order
		addressJSON []byte
	)
	err := row.Scan(
		&order.ID,
		&order.OrderCode,
		&order.UserID,
		&order.SubTotal,
		&order.ShippingFee,
		&order.Discount,
		&order.Tax,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.PaymentStatus,
		&addressJSON,
		&order.Note,
		&order.PaidAt,
		&order.CancelledAt,
		&order.CancellationReason,
		&order.RefundedAt,
		&order.ShippedAt,
		&order.DeliveredAt,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping_address: %w", err)
		}
	}
	return &order, nil
}

// =====================================================
// UPDATE ORDER
// =====================================================

func (r *postgresOrderRepository) UpdateWithTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		UPDATE orders
		SET status = $1,
			payment_status = $2,
			paid_at = $3,
			cancelled_at = $4,
			cancellation_reason = $5,
			refunded_at = $6,
			shipped_at = $7,
			delivered_at = $8,
			version = version + 1,
			updated_at = $9
		WHERE id = $10 AND version = $11
	`
	result, err := tx.Exec(ctx, query,
		order.Status,
		order.PaymentStatus,
		order.PaidAt,
		order.CancelledAt,
		order.CancellationReason,
		order.RefundedAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrVersionMismatch
	}
	order.Version++

	return r.insertHistory(ctx, tx, order.TakeHistory())
}

// =====================================================
// LIST
// =====================================================

func (r *postgresOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, int, error) {
	offset := (page - 1) * limit

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0, limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, total, nil
}

func (r *postgresOrderRepository) ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	query := `
		SELECT id, order_id, from_status, to_status, changed_by, reason, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order status history: %w", err)
	}
	defer rows.Close()

	var history []model.OrderStatusHistory
	for rows.Next() {
		var h model.OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *postgresOrderRepository) ListAbandonedIDs(ctx context.Context, idleSince time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT o.id
		FROM orders o
		WHERE o.status = 'PENDING_PAYMENT'
		  AND o.updated_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.order_id = o.id AND p.status = 'PENDING'
		  )
		ORDER BY o.updated_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, idleSince, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list abandoned orders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
