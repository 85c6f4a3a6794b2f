package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bookstore-settlement/internal/domains/notification/model"
)

// OutboxRepository stores events next to the business rows they describe.
type OutboxRepository interface {
	// AppendWithTx must run in the transaction that made the state change.
	AppendWithTx(ctx context.Context, tx pgx.Tx, event *model.OutboxEvent) error

	// LockBatch claims up to batchSize publishable events for lease. Rows
	// claimed by another relay are skipped, not waited on.
	LockBatch(ctx context.Context, batchSize int, lease time.Duration) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}
