package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/notification/repository"
	"bookstore-settlement/pkg/logger"
)

// Relay moves committed outbox rows onto the task queue.
type Relay struct {
	store     repository.OutboxRepository
	publisher Publisher
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(store repository.OutboxRepository, publisher Publisher, batchSize int, interval time.Duration) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		lease:     30 * time.Second,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	logger.Info("Outbox relay started", map[string]interface{}{
		"batch_size": r.batchSize,
		"interval":   r.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("Outbox relay stopping", nil)
			return nil
		case <-t.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				logger.Error("Outbox relay batch failed", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many events were sent.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	sent := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			logger.ErrorWithFields("Outbox publish failed", err, map[string]interface{}{
				"event_id":   ev.ID,
				"event_type": ev.EventType,
				"attempts":   ev.Attempts + 1,
			})
			if markErr := r.store.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
				logger.Error("Outbox mark failed", markErr)
			}
			continue
		}
		sent = append(sent, ev.ID)
	}

	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			return 0, err
		}
	}
	return len(sent), nil
}
