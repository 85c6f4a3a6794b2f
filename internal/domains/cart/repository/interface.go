package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookstore-settlement/internal/domains/cart/model"
)

type RepositoryInterface interface {
	ListLines(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error)
	// UpsertLine sets the quantity and price snapshot of a line, creating it
	// if needed.
	UpsertLine(ctx context.Context, line *model.CartLine) error
	RemoveLine(ctx context.Context, userID, bookID uuid.UUID) error
	// ClearWithTx empties the cart as part of checkout.
	ClearWithTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}
