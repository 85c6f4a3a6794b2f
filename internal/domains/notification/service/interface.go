package service

import (
	"context"

	"bookstore-settlement/internal/domains/notification/model"
)

// Publisher hands an outbox event to the task queue.
type Publisher interface {
	Publish(ctx context.Context, event model.OutboxEvent) error
}

// Notifier delivers a published event to the customer or back office.
// Delivery failures never touch payment or order state.
type Notifier interface {
	Notify(ctx context.Context, event model.OutboxEvent) error
}
