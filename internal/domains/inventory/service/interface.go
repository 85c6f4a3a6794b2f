package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bookstore-settlement/internal/domains/inventory/model"
)

type ServiceInterface interface {
	// Catalog reads
	GetSellablePrice(ctx context.Context, bookID uuid.UUID) (decimal.Decimal, error)
	GetStock(ctx context.Context, bookID uuid.UUID) (int, error)
	GetBooks(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]model.BookSnapshot, error)

	// Reservation, always inside the caller's transaction
	ReserveItems(ctx context.Context, tx pgx.Tx, items []model.LineQuantity, ref model.Reference) error
	ReleaseItems(ctx context.Context, tx pgx.Tx, items []model.LineQuantity, ref model.Reference) error

	// Admin
	AdjustStock(ctx context.Context, bookID uuid.UUID, adminID uuid.UUID, req model.AdjustStockRequest) (*model.AdjustStockResponse, error)
	ListMovements(ctx context.Context, bookID uuid.UUID, limit int) ([]model.Movement, error)
}
