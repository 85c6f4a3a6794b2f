package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookstore-settlement/internal/domains/inventory/model"
)

// RepositoryInterface is the catalog/stock collaborator. Every stock
// mutation is a single compare-and-update statement; there is no
// read-modify-write in Go code.
type RepositoryInterface interface {
	GetBook(ctx context.Context, bookID uuid.UUID) (*model.BookSnapshot, error)
	GetBooks(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]model.BookSnapshot, error)

	// ReserveWithTx decrements stock by qty only if at least qty is
	// available. Returns the stock left.
	ReserveWithTx(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, qty int, ref model.Reference) (int, error)
	// ReleaseWithTx puts qty back.
	ReleaseWithTx(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, qty int, ref model.Reference) (int, error)
	// AdjustStock applies a signed delta in its own transaction and refuses
	// to go below zero.
	AdjustStock(ctx context.Context, bookID uuid.UUID, delta int, ref model.Reference) (int, error)

	ListMovements(ctx context.Context, bookID uuid.UUID, limit int) ([]model.Movement, error)
}
