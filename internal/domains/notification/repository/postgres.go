package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookstore-settlement/internal/domains/notification/model"
)

type outboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

func (r *outboxRepository) AppendWithTx(ctx context.Context, tx pgx.Tx, ev *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (
			id, aggregate_type, aggregate_id, event_type, payload, status, attempts, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
	`
	_, err := tx.Exec(ctx, query,
		ev.ID,
		ev.AggregateType,
		ev.AggregateID,
		ev.EventType,
		[]byte(ev.Payload),
		ev.Status,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}

// LockBatch picks pending events, events whose lease ran out, and failed
// events still under the attempt limit.
func (r *outboxRepository) LockBatch(ctx context.Context, batchSize int, lease time.Duration) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status, attempts, last_error, created_at
			FROM outbox_events
			WHERE (status = 'pending')
			   OR (status = 'in_progress' AND lease_until < NOW())
			   OR (status = 'failed' AND attempts < $2)
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT $1
		`, batchSize, model.MaxPublishAttempts)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				ev      model.OutboxEvent
				payload []byte
			)
			if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType,
				&payload, &ev.Status, &ev.Attempts, &ev.LastError, &ev.CreatedAt); err != nil {
				return err
			}
			ev.Payload = payload
			events = append(events, ev)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ID)
		}
		_, err = tx.Exec(ctx, `
			UPDATE outbox_events
			SET status = 'in_progress', lease_until = NOW() + make_interval(secs => $1)
			WHERE id = ANY($2)
		`, lease.Seconds(), ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to lock outbox batch: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'sent', sent_at = NOW(), attempts = attempts + 1, last_error = NULL
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark outbox events sent: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'failed', last_error = $2, attempts = attempts + 1
		WHERE id = $1
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}
