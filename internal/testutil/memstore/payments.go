package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	payModel "bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/domains/payment/repository"
)

type paymentRepo struct{ s *Store }

// Payments returns the payment repository view of the store.
func (s *Store) Payments() repository.PaymentRepository { return &paymentRepo{s: s} }

func (r *paymentRepo) CreateWithTx(_ context.Context, tx pgx.Tx, p *payModel.Payment) error {
	return r.s.write(tx, func(d *state) error {
		for _, existing := range d.payments {
			if existing.OrderID == p.OrderID && existing.Status == payModel.StatusPending {
				return payModel.ErrPendingPaymentExists
			}
			if existing.TxnRef == p.TxnRef {
				return errDuplicate("payments.txn_ref")
			}
			if existing.PaymentCode == p.PaymentCode {
				return errDuplicate("payments.payment_code")
			}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = r.s.now()
		}
		p.UpdatedAt = p.CreatedAt
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepo) UpdateWithTx(_ context.Context, tx pgx.Tx, p *payModel.Payment) error {
	return r.s.write(tx, func(d *state) error {
		if _, ok := d.payments[p.ID]; !ok {
			return payModel.ErrPaymentNotFound
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r *paymentRepo) find(match func(p payModel.Payment) bool) (*payModel.Payment, error) {
	var found *payModel.Payment
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if match(p) {
				c := p
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, payModel.ErrPaymentNotFound
	}
	return found, nil
}

func (r *paymentRepo) GetByTxnRefForUpdateWithTx(_ context.Context, tx pgx.Tx, txnRef string) (*payModel.Payment, error) {
	r.s.active(tx)
	return r.find(func(p payModel.Payment) bool { return p.TxnRef == txnRef })
}

func (r *paymentRepo) GetByCodeForUpdateWithTx(_ context.Context, tx pgx.Tx, code string) (*payModel.Payment, error) {
	r.s.active(tx)
	return r.find(func(p payModel.Payment) bool { return p.PaymentCode == code })
}

func (r *paymentRepo) GetByIDForUpdateWithTx(_ context.Context, tx pgx.Tx, id uuid.UUID) (*payModel.Payment, error) {
	r.s.active(tx)
	return r.find(func(p payModel.Payment) bool { return p.ID == id })
}

func (r *paymentRepo) FindPendingByOrderForUpdateWithTx(_ context.Context, tx pgx.Tx, orderID uuid.UUID) (*payModel.Payment, error) {
	r.s.active(tx)
	p, err := r.find(func(p payModel.Payment) bool {
		return p.OrderID == orderID && p.Status == payModel.StatusPending
	})
	if err == payModel.ErrPaymentNotFound {
		return nil, nil
	}
	return p, err
}

func (r *paymentRepo) HasPendingWithTx(_ context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	r.s.active(tx)
	_, err := r.find(func(p payModel.Payment) bool {
		return p.OrderID == orderID && p.Status == payModel.StatusPending
	})
	return err == nil, nil
}

func (r *paymentRepo) CountByOrderWithTx(_ context.Context, tx pgx.Tx, orderID uuid.UUID) (int, error) {
	r.s.active(tx)
	n := 0
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if p.OrderID == orderID {
				n++
			}
		}
	})
	return n, nil
}

func (r *paymentRepo) AppendTransactionWithTx(_ context.Context, tx pgx.Tx, t *payModel.PaymentTransaction) error {
	return r.s.write(tx, func(d *state) error {
		if _, ok := d.payments[t.PaymentID]; !ok {
			return payModel.ErrPaymentNotFound
		}
		d.txns = append(d.txns, *t)
		return nil
	})
}

func (r *paymentRepo) GetByCode(_ context.Context, code string) (*payModel.Payment, error) {
	return r.find(func(p payModel.Payment) bool { return p.PaymentCode == code })
}

func (r *paymentRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]payModel.Payment, error) {
	out := r.s.PaymentsOf(orderID)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *paymentRepo) ListTransactions(_ context.Context, paymentID uuid.UUID) ([]payModel.PaymentTransaction, error) {
	return r.s.Transactions(paymentID), nil
}

func (r *paymentRepo) ListExpiredPendingIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var expired []payModel.Payment
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if p.Status == payModel.StatusPending && p.ExpiresAt.Before(now) {
				expired = append(expired, p)
			}
		}
	})
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })

	ids := make([]uuid.UUID, 0, len(expired))
	for i, p := range expired {
		if i == limit {
			break
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r *paymentRepo) LogWebhook(_ context.Context, log *payModel.WebhookLog) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	r.s.webhooks = append(r.s.webhooks, *log)
	return nil
}
