package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookstore-settlement/internal/domains/order/model"
)

// =====================================================
// ORDER REPOSITORY INTERFACE
// =====================================================
type OrderRepository interface {
	// CreateWithTx inserts the order, its items and the initial history row.
	CreateWithTx(ctx context.Context, tx pgx.Tx, order *model.Order) error

	GetByID(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	GetByCode(ctx context.Context, orderCode string) (*model.Order, error)
	// GetByIDForUpdateWithTx locks the order row (SELECT ... FOR UPDATE).
	GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*model.Order, error)

	// UpdateWithTx persists status fields with an optimistic version check
	// and writes any pending history rows. Returns ErrVersionMismatch when
	// the row changed underneath.
	UpdateWithTx(ctx context.Context, tx pgx.Tx, order *model.Order) error

	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, int, error)
	ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error)

	// ListAbandonedIDs returns PENDING_PAYMENT orders untouched since before
	// idleSince that have no PENDING payment.
	ListAbandonedIDs(ctx context.Context, idleSince time.Time, limit int) ([]uuid.UUID, error)
}
