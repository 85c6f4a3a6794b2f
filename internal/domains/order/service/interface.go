package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookstore-settlement/internal/domains/order/model"
)

// OrderService defines business logic for orders
type OrderService interface {
	// User operations
	CreateOrder(ctx context.Context, userID uuid.UUID, req model.CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)
	GetOrderByCode(ctx context.Context, userID uuid.UUID, code string) (*model.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, req model.ListOrdersRequest) (*model.ListOrdersResponse, error)
	GetStatusHistory(ctx context.Context, userID, orderID uuid.UUID) ([]model.OrderStatusHistory, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID, req model.CancelOrderRequest) (*model.Order, error)

	// Admin operations
	GetOrderAdmin(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID, adminID uuid.UUID, req model.UpdateStatusRequest) (*model.Order, error)
}

// PendingPaymentChecker reports whether an order has a payment attempt
// still waiting for the gateway. The payment repository implements it.
type PendingPaymentChecker interface {
	HasPendingWithTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)
}
