// Package memstore is an in-memory implementation of every repository
// interface plus database.TxManager, for service tests without Postgres.
//
// Transactions are fully serialized: BeginTx takes a store-wide lock that
// is held until commit or rollback, which gives the same outcome as the
// row locks the Postgres repositories take. Rollback restores a snapshot.
// Auto-commit writes (AdjustStock, cart edits, outbox bookkeeping) take the
// same lock. Calling one of them from inside a transaction deadlocks, the
// same way it would block on a real row lock held by the caller.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	cartModel "bookstore-settlement/internal/domains/cart/model"
	invModel "bookstore-settlement/internal/domains/inventory/model"
	notifModel "bookstore-settlement/internal/domains/notification/model"
	orderModel "bookstore-settlement/internal/domains/order/model"
	payModel "bookstore-settlement/internal/domains/payment/model"
)

type state struct {
	books     map[uuid.UUID]invModel.BookSnapshot
	movements []invModel.Movement
	carts     map[uuid.UUID]map[uuid.UUID]cartModel.CartLine
	orders    map[uuid.UUID]orderModel.Order
	history   []orderModel.OrderStatusHistory
	payments  map[uuid.UUID]payModel.Payment
	txns      []payModel.PaymentTransaction
	outbox    []notifModel.OutboxEvent
}

func newState() *state {
	return &state{
		books:    make(map[uuid.UUID]invModel.BookSnapshot),
		carts:    make(map[uuid.UUID]map[uuid.UUID]cartModel.CartLine),
		orders:   make(map[uuid.UUID]orderModel.Order),
		payments: make(map[uuid.UUID]payModel.Payment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.books {
		c.books[k] = v
	}
	c.movements = append([]invModel.Movement(nil), s.movements...)
	for user, lines := range s.carts {
		m := make(map[uuid.UUID]cartModel.CartLine, len(lines))
		for k, v := range lines {
			m[k] = v
		}
		c.carts[user] = m
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	c.history = append([]orderModel.OrderStatusHistory(nil), s.history...)
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.txns = append([]payModel.PaymentTransaction(nil), s.txns...)
	c.outbox = append([]notifModel.OutboxEvent(nil), s.outbox...)
	return c
}

func copyOrder(o orderModel.Order) orderModel.Order {
	o.Items = append([]orderModel.OrderItem(nil), o.Items...)
	o.PendingHistory = nil
	return o
}

// Store holds all tables.
type Store struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	data   *state

	// webhook logs are written outside business transactions and survive
	// rollbacks.
	webhooks []payModel.WebhookLog

	now func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// SetClock replaces the clock used for store-side timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// =====================================================
// TRANSACTIONS
// =====================================================

type memTx struct {
	pgx.Tx // nil; only identity matters
	store    *Store
	snapshot *state
	done     bool
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	s.dataMu.RLock()
	snap := s.data.clone()
	s.dataMu.RUnlock()
	return &memTx{store: s, snapshot: snap}, nil
}

func (s *Store) CommitTx(_ context.Context, tx pgx.Tx) error {
	t := s.txOf(tx)
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	s.txMu.Unlock()
	return nil
}

func (s *Store) RollbackTx(_ context.Context, tx pgx.Tx) error {
	t := s.txOf(tx)
	if t.done {
		return nil
	}
	s.dataMu.Lock()
	s.data = t.snapshot
	s.dataMu.Unlock()
	t.done = true
	s.txMu.Unlock()
	return nil
}

func (s *Store) txOf(tx pgx.Tx) *memTx {
	t, ok := tx.(*memTx)
	if !ok || t.store != s {
		panic(fmt.Sprintf("memstore: foreign transaction %T", tx))
	}
	return t
}

// active panics when a *WithTx method is called outside an open transaction.
func (s *Store) active(tx pgx.Tx) {
	if s.txOf(tx).done {
		panic("memstore: use of finished transaction")
	}
}

// autoCommit runs fn as a single-statement transaction.
func (s *Store) autoCommit(fn func(d *state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	snap := s.data.clone()
	if err := fn(s.data); err != nil {
		s.data = snap
		return err
	}
	return nil
}

func (s *Store) read(fn func(d *state)) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	fn(s.data)
}

func (s *Store) write(tx pgx.Tx, fn func(d *state) error) error {
	s.active(tx)
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return fn(s.data)
}

// =====================================================
// SEEDING AND INSPECTION
// =====================================================

// PutBook inserts or replaces a catalog row.
func (s *Store) PutBook(b invModel.BookSnapshot) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.data.books[b.ID] = b
}

func (s *Store) Stock(bookID uuid.UUID) int {
	var n int
	s.read(func(d *state) { n = d.books[bookID].StockQuantity })
	return n
}

func (s *Store) Order(id uuid.UUID) (orderModel.Order, bool) {
	var (
		o  orderModel.Order
		ok bool
	)
	s.read(func(d *state) {
		o, ok = d.orders[id]
		o = copyOrder(o)
	})
	return o, ok
}

// SetOrderUpdatedAt backdates an order for abandoned-order tests.
func (s *Store) SetOrderUpdatedAt(id uuid.UUID, at time.Time) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	o := s.data.orders[id]
	o.UpdatedAt = at
	s.data.orders[id] = o
}

func (s *Store) Payment(id uuid.UUID) (payModel.Payment, bool) {
	var (
		p  payModel.Payment
		ok bool
	)
	s.read(func(d *state) { p, ok = d.payments[id] })
	return p, ok
}

// PaymentsOf returns every payment of an order.
func (s *Store) PaymentsOf(orderID uuid.UUID) []payModel.Payment {
	var out []payModel.Payment
	s.read(func(d *state) {
		for _, p := range d.payments {
			if p.OrderID == orderID {
				out = append(out, p)
			}
		}
	})
	return out
}

// SetPaymentExpiresAt moves a payment's TTL, typically into the past.
func (s *Store) SetPaymentExpiresAt(id uuid.UUID, at time.Time) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	p := s.data.payments[id]
	p.ExpiresAt = at
	s.data.payments[id] = p
}

func (s *Store) Transactions(paymentID uuid.UUID) []payModel.PaymentTransaction {
	var out []payModel.PaymentTransaction
	s.read(func(d *state) {
		for _, t := range d.txns {
			if t.PaymentID == paymentID {
				out = append(out, t)
			}
		}
	})
	return out
}

func (s *Store) Webhooks() []payModel.WebhookLog {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return append([]payModel.WebhookLog(nil), s.webhooks...)
}

// Events returns outbox rows, optionally filtered by type.
func (s *Store) Events(eventType string) []notifModel.OutboxEvent {
	var out []notifModel.OutboxEvent
	s.read(func(d *state) {
		for _, e := range d.outbox {
			if eventType == "" || e.EventType == eventType {
				out = append(out, e)
			}
		}
	})
	return out
}

func (s *Store) History(orderID uuid.UUID) []orderModel.OrderStatusHistory {
	var out []orderModel.OrderStatusHistory
	s.read(func(d *state) {
		for _, h := range d.history {
			if h.OrderID == orderID {
				out = append(out, h)
			}
		}
	})
	return out
}

func (s *Store) Movements(bookID uuid.UUID) []invModel.Movement {
	var out []invModel.Movement
	s.read(func(d *state) {
		for _, m := range d.movements {
			if m.BookID == bookID {
				out = append(out, m)
			}
		}
	})
	return out
}
