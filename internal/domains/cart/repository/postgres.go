package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookstore-settlement/internal/domains/cart/model"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) ListLines(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	query := `
		SELECT user_id, book_id, quantity, unit_price_snapshot, added_at, updated_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at ASC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.UserID, &l.BookID, &l.Quantity, &l.UnitPriceSnapshot, &l.AddedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *postgresRepository) UpsertLine(ctx context.Context, line *model.CartLine) error {
	query := `
		INSERT INTO cart_items (user_id, book_id, quantity, unit_price_snapshot, added_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    unit_price_snapshot = EXCLUDED.unit_price_snapshot,
		    updated_at = NOW()
		RETURNING added_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, line.UserID, line.BookID, line.Quantity, line.UnitPriceSnapshot).
		Scan(&line.AddedAt, &line.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *postgresRepository) RemoveLine(ctx context.Context, userID, bookID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartLineNotFound
	}
	return nil
}

func (r *postgresRepository) ClearWithTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
