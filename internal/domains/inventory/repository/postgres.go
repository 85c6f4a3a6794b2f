package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookstore-settlement/internal/domains/inventory/model"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) GetBook(ctx context.Context, bookID uuid.UUID) (*model.BookSnapshot, error) {
	query := `
		SELECT id, title, isbn, price, stock_quantity, is_active
		FROM books
		WHERE id = $1
	`
	var b model.BookSnapshot
	err := r.pool.QueryRow(ctx, query, bookID).Scan(&b.ID, &b.Title, &b.ISBN, &b.Price, &b.StockQuantity, &b.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewBookNotFoundError(bookID)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

func (r *postgresRepository) GetBooks(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]model.BookSnapshot, error) {
	query := `
		SELECT id, title, isbn, price, stock_quantity, is_active
		FROM books
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("get books: %w", err)
	}
	defer rows.Close()

	books := make(map[uuid.UUID]model.BookSnapshot, len(bookIDs))
	for rows.Next() {
		var b model.BookSnapshot
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN, &b.Price, &b.StockQuantity, &b.IsActive); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books[b.ID] = b
	}
	return books, rows.Err()
}

// ReserveWithTx is the compare-and-decrement primitive. Two checkouts racing
// for the last unit both run this UPDATE; the row lock taken by the first
// makes the second re-evaluate the WHERE clause and match zero rows.
func (r *postgresRepository) ReserveWithTx(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, qty int, ref model.Reference) (int, error) {
	if qty <= 0 {
		return 0, model.NewInvalidQuantityError(bookID, qty)
	}

	query := `
		UPDATE books
		SET stock_quantity = stock_quantity - $2,
		    updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND stock_quantity >= $2
		RETURNING stock_quantity
	`
	var stockAfter int
	err := tx.QueryRow(ctx, query, bookID, qty).Scan(&stockAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.explainMiss(ctx, tx, bookID, qty)
		}
		return 0, fmt.Errorf("reserve stock: %w", err)
	}

	if err := r.insertMovement(ctx, tx, bookID, model.MovementReserve, -qty, stockAfter, ref); err != nil {
		return 0, err
	}
	return stockAfter, nil
}

func (r *postgresRepository) ReleaseWithTx(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, qty int, ref model.Reference) (int, error) {
	if qty <= 0 {
		return 0, model.NewInvalidQuantityError(bookID, qty)
	}

	query := `
		UPDATE books
		SET stock_quantity = stock_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING stock_quantity
	`
	var stockAfter int
	err := tx.QueryRow(ctx, query, bookID, qty).Scan(&stockAfter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.NewBookNotFoundError(bookID)
		}
		return 0, fmt.Errorf("release stock: %w", err)
	}

	if err := r.insertMovement(ctx, tx, bookID, model.MovementRelease, qty, stockAfter, ref); err != nil {
		return 0, err
	}
	return stockAfter, nil
}

func (r *postgresRepository) AdjustStock(ctx context.Context, bookID uuid.UUID, delta int, ref model.Reference) (int, error) {
	var stockAfter int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			UPDATE books
			SET stock_quantity = stock_quantity + $2,
			    updated_at = NOW()
			WHERE id = $1 AND stock_quantity + $2 >= 0
			RETURNING stock_quantity
		`
		err := tx.QueryRow(ctx, query, bookID, delta).Scan(&stockAfter)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return r.explainMiss(ctx, tx, bookID, -delta)
			}
			return fmt.Errorf("adjust stock: %w", err)
		}
		return r.insertMovement(ctx, tx, bookID, model.MovementAdjustment, delta, stockAfter, ref)
	})
	if err != nil {
		return 0, err
	}
	return stockAfter, nil
}

func (r *postgresRepository) ListMovements(ctx context.Context, bookID uuid.UUID, limit int) ([]model.Movement, error) {
	query := `
		SELECT id, book_id, movement_type, quantity, stock_after, reference_type, reference_id, COALESCE(note, ''), created_at
		FROM inventory_movements
		WHERE book_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, bookID, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.BookID, &m.MovementType, &m.Quantity, &m.StockAfter,
			&m.ReferenceType, &m.ReferenceID, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// explainMiss tells "book missing" apart from "not enough stock" after a
// conditional UPDATE matched nothing.
func (r *postgresRepository) explainMiss(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, qty int) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return fmt.Errorf("check book: %w", err)
	}
	if !exists {
		return model.NewBookNotFoundError(bookID)
	}
	return model.NewOutOfStockError(bookID, qty)
}

func (r *postgresRepository) insertMovement(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, kind model.MovementType, qty, stockAfter int, ref model.Reference) error {
	query := `
		INSERT INTO inventory_movements (
			id, book_id, movement_type, quantity, stock_after,
			reference_type, reference_id, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := tx.Exec(ctx, query, uuid.New(), bookID, kind, qty, stockAfter, ref.Type, ref.ID, ref.Note)
	if err != nil {
		return fmt.Errorf("failed to log inventory movement: %w", err)
	}
	return nil
}
