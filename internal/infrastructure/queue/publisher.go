package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"bookstore-settlement/internal/domains/notification/model"
	"bookstore-settlement/internal/shared"
)

// Enqueuer is the slice of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EventPublisher turns outbox events into asynq delivery tasks.
type EventPublisher struct {
	client Enqueuer
}

func NewEventPublisher(client Enqueuer) *EventPublisher {
	return &EventPublisher{client: client}
}

// Publish enqueues the event with its id as task id, so a relay that
// crashes between enqueue and MarkSent does not deliver twice.
func (p *EventPublisher) Publish(ctx context.Context, ev model.OutboxEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	task := asynq.NewTask(shared.TypeDeliverEvent, body)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueNotification),
		asynq.TaskID(ev.ID.String()),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
		asynq.Retention(24*time.Hour),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue event %s: %w", ev.ID, err)
	}
	return nil
}
