package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/order/repository"
	payModel "bookstore-settlement/internal/domains/payment/model"
)

type orderRepo struct{ s *Store }

// Orders returns the order repository view of the store.
func (s *Store) Orders() repository.OrderRepository { return &orderRepo{s: s} }

func (r *orderRepo) CreateWithTx(_ context.Context, tx pgx.Tx, o *orderModel.Order) error {
	return r.s.write(tx, func(d *state) error {
		for _, existing := range d.orders {
			if existing.OrderCode == o.OrderCode {
				return errDuplicate("orders.order_code")
			}
		}
		now := r.s.now()
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		if o.UpdatedAt.IsZero() {
			o.UpdatedAt = o.CreatedAt
		}
		for i := range o.Items {
			o.Items[i].CreatedAt = o.CreatedAt
		}
		d.history = append(d.history, o.TakeHistory()...)
		d.orders[o.ID] = copyOrder(*o)
		return nil
	})
}

func (r *orderRepo) GetByID(_ context.Context, id uuid.UUID) (*orderModel.Order, error) {
	var (
		o  orderModel.Order
		ok bool
	)
	r.s.read(func(d *state) {
		o, ok = d.orders[id]
		o = copyOrder(o)
	})
	if !ok {
		return nil, orderModel.ErrOrderNotFound
	}
	return &o, nil
}

func (r *orderRepo) GetByCode(_ context.Context, code string) (*orderModel.Order, error) {
	var found *orderModel.Order
	r.s.read(func(d *state) {
		for _, o := range d.orders {
			if o.OrderCode == code {
				c := copyOrder(o)
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, orderModel.ErrOrderNotFound
	}
	return found, nil
}

func (r *orderRepo) GetByIDForUpdateWithTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*orderModel.Order, error) {
	r.s.active(tx)
	return r.GetByID(ctx, id)
}

func (r *orderRepo) UpdateWithTx(_ context.Context, tx pgx.Tx, o *orderModel.Order) error {
	return r.s.write(tx, func(d *state) error {
		stored, ok := d.orders[o.ID]
		if !ok || stored.Version != o.Version {
			return orderModel.ErrVersionMismatch
		}
		o.Version++
		d.history = append(d.history, o.TakeHistory()...)
		updated := copyOrder(*o)
		updated.Items = stored.Items
		d.orders[o.ID] = updated
		return nil
	})
}

func (r *orderRepo) ListByUser(_ context.Context, userID uuid.UUID, page, limit int) ([]orderModel.Order, int, error) {
	var all []orderModel.Order
	r.s.read(func(d *state) {
		for _, o := range d.orders {
			if o.UserID == userID {
				all = append(all, copyOrder(o))
			}
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return []orderModel.Order{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *orderRepo) ListStatusHistory(_ context.Context, orderID uuid.UUID) ([]orderModel.OrderStatusHistory, error) {
	return r.s.History(orderID), nil
}

func (r *orderRepo) ListAbandonedIDs(_ context.Context, idleSince time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	r.s.read(func(d *state) {
		pending := make(map[uuid.UUID]bool)
		for _, p := range d.payments {
			if p.Status == payModel.StatusPending {
				pending[p.OrderID] = true
			}
		}
		var candidates []orderModel.Order
		for _, o := range d.orders {
			if o.Status == orderModel.StatusPendingPayment && o.UpdatedAt.Before(idleSince) && !pending[o.ID] {
				candidates = append(candidates, o)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt) })
		for i, o := range candidates {
			if i == limit {
				break
			}
			ids = append(ids, o.ID)
		}
	})
	return ids, nil
}
