package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	cartModel "bookstore-settlement/internal/domains/cart/model"
	"bookstore-settlement/internal/domains/cart/repository"
)

type cartRepo struct{ s *Store }

// Carts returns the cart repository view of the store.
func (s *Store) Carts() repository.RepositoryInterface { return &cartRepo{s: s} }

func (r *cartRepo) ListLines(_ context.Context, userID uuid.UUID) ([]cartModel.CartLine, error) {
	var lines []cartModel.CartLine
	r.s.read(func(d *state) {
		for _, l := range d.carts[userID] {
			lines = append(lines, l)
		}
	})
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].BookID.String() < lines[j].BookID.String()
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines, nil
}

func (r *cartRepo) UpsertLine(_ context.Context, line *cartModel.CartLine) error {
	return r.s.autoCommit(func(d *state) error {
		now := r.s.now()
		lines, ok := d.carts[line.UserID]
		if !ok {
			lines = make(map[uuid.UUID]cartModel.CartLine)
			d.carts[line.UserID] = lines
		}
		if existing, ok := lines[line.BookID]; ok {
			line.AddedAt = existing.AddedAt
		} else {
			line.AddedAt = now
		}
		line.UpdatedAt = now
		lines[line.BookID] = *line
		return nil
	})
}

func (r *cartRepo) RemoveLine(_ context.Context, userID, bookID uuid.UUID) error {
	return r.s.autoCommit(func(d *state) error {
		if _, ok := d.carts[userID][bookID]; !ok {
			return cartModel.ErrCartLineNotFound
		}
		delete(d.carts[userID], bookID)
		return nil
	})
}

func (r *cartRepo) ClearWithTx(_ context.Context, tx pgx.Tx, userID uuid.UUID) error {
	return r.s.write(tx, func(d *state) error {
		delete(d.carts, userID)
		return nil
	})
}
