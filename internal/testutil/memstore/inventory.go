package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	invModel "bookstore-settlement/internal/domains/inventory/model"
	"bookstore-settlement/internal/domains/inventory/repository"
)

type inventoryRepo struct{ s *Store }

// Inventory returns the catalog/stock repository view of the store.
func (s *Store) Inventory() repository.RepositoryInterface { return &inventoryRepo{s: s} }

func (r *inventoryRepo) GetBook(_ context.Context, bookID uuid.UUID) (*invModel.BookSnapshot, error) {
	var (
		b  invModel.BookSnapshot
		ok bool
	)
	r.s.read(func(d *state) { b, ok = d.books[bookID] })
	if !ok {
		return nil, invModel.NewBookNotFoundError(bookID)
	}
	return &b, nil
}

func (r *inventoryRepo) GetBooks(_ context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]invModel.BookSnapshot, error) {
	out := make(map[uuid.UUID]invModel.BookSnapshot, len(bookIDs))
	r.s.read(func(d *state) {
		for _, id := range bookIDs {
			if b, ok := d.books[id]; ok {
				out[id] = b
			}
		}
	})
	return out, nil
}

func (r *inventoryRepo) ReserveWithTx(_ context.Context, tx pgx.Tx, bookID uuid.UUID, qty int, ref invModel.Reference) (int, error) {
	if qty <= 0 {
		return 0, invModel.NewInvalidQuantityError(bookID, qty)
	}
	var after int
	err := r.s.write(tx, func(d *state) error {
		b, ok := d.books[bookID]
		if !ok {
			return invModel.NewBookNotFoundError(bookID)
		}
		if !b.IsActive || b.StockQuantity < qty {
			return invModel.NewOutOfStockError(bookID, qty)
		}
		b.StockQuantity -= qty
		d.books[bookID] = b
		after = b.StockQuantity
		d.movements = append(d.movements, r.movement(bookID, invModel.MovementReserve, -qty, after, ref))
		return nil
	})
	return after, err
}

func (r *inventoryRepo) ReleaseWithTx(_ context.Context, tx pgx.Tx, bookID uuid.UUID, qty int, ref invModel.Reference) (int, error) {
	if qty <= 0 {
		return 0, invModel.NewInvalidQuantityError(bookID, qty)
	}
	var after int
	err := r.s.write(tx, func(d *state) error {
		b, ok := d.books[bookID]
		if !ok {
			return invModel.NewBookNotFoundError(bookID)
		}
		b.StockQuantity += qty
		d.books[bookID] = b
		after = b.StockQuantity
		d.movements = append(d.movements, r.movement(bookID, invModel.MovementRelease, qty, after, ref))
		return nil
	})
	return after, err
}

func (r *inventoryRepo) AdjustStock(_ context.Context, bookID uuid.UUID, delta int, ref invModel.Reference) (int, error) {
	var after int
	err := r.s.autoCommit(func(d *state) error {
		b, ok := d.books[bookID]
		if !ok {
			return invModel.NewBookNotFoundError(bookID)
		}
		if b.StockQuantity+delta < 0 {
			return invModel.NewOutOfStockError(bookID, -delta)
		}
		b.StockQuantity += delta
		d.books[bookID] = b
		after = b.StockQuantity
		d.movements = append(d.movements, r.movement(bookID, invModel.MovementAdjustment, delta, after, ref))
		return nil
	})
	return after, err
}

func (r *inventoryRepo) ListMovements(_ context.Context, bookID uuid.UUID, limit int) ([]invModel.Movement, error) {
	out := r.s.Movements(bookID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inventoryRepo) movement(bookID uuid.UUID, kind invModel.MovementType, qty, after int, ref invModel.Reference) invModel.Movement {
	return invModel.Movement{
		ID:            uuid.New(),
		BookID:        bookID,
		MovementType:  kind,
		Quantity:      qty,
		StockAfter:    after,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Note:          ref.Note,
		CreatedAt:     r.s.now(),
	}
}
