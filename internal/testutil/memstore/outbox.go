package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	notifModel "bookstore-settlement/internal/domains/notification/model"
	"bookstore-settlement/internal/domains/notification/repository"
)

type outboxRepo struct {
	s      *Store
	leases map[uuid.UUID]time.Time
}

// Outbox returns the outbox repository view of the store.
func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepo{s: s, leases: make(map[uuid.UUID]time.Time)}
}

func (r *outboxRepo) AppendWithTx(_ context.Context, tx pgx.Tx, ev *notifModel.OutboxEvent) error {
	return r.s.write(tx, func(d *state) error {
		d.outbox = append(d.outbox, *ev)
		return nil
	})
}

func (r *outboxRepo) LockBatch(_ context.Context, batchSize int, lease time.Duration) ([]notifModel.OutboxEvent, error) {
	var out []notifModel.OutboxEvent
	err := r.s.autoCommit(func(d *state) error {
		now := r.s.now()
		for i := range d.outbox {
			if len(out) == batchSize {
				break
			}
			ev := &d.outbox[i]
			claimable := ev.Status == notifModel.EventStatusPending ||
				(ev.Status == notifModel.EventStatusInProgress && r.leases[ev.ID].Before(now)) ||
				(ev.Status == notifModel.EventStatusFailed && ev.Attempts < notifModel.MaxPublishAttempts)
			if !claimable {
				continue
			}
			out = append(out, *ev)
			ev.Status = notifModel.EventStatusInProgress
			r.leases[ev.ID] = now.Add(lease)
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) MarkSent(_ context.Context, ids []uuid.UUID) error {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return r.s.autoCommit(func(d *state) error {
		now := r.s.now()
		for i := range d.outbox {
			if set[d.outbox[i].ID] {
				d.outbox[i].Status = notifModel.EventStatusSent
				d.outbox[i].Attempts++
				d.outbox[i].SentAt = &now
				d.outbox[i].LastError = nil
			}
		}
		return nil
	})
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	return r.s.autoCommit(func(d *state) error {
		for i := range d.outbox {
			if d.outbox[i].ID == id {
				d.outbox[i].Status = notifModel.EventStatusFailed
				d.outbox[i].Attempts++
				msg := errMsg
				d.outbox[i].LastError = &msg
			}
		}
		return nil
	})
}
