package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"bookstore-settlement/internal/domains/notification/model"
	"bookstore-settlement/internal/domains/notification/service"
	"bookstore-settlement/pkg/logger"
)

// ================================================
// DELIVER EVENT JOB HANDLER
// ================================================

// DeliverEventHandler consumes events published by the outbox relay.
// Returning an error makes asynq retry the delivery.
type DeliverEventHandler struct {
	notifier service.Notifier
}

func NewDeliverEventHandler(notifier service.Notifier) *DeliverEventHandler {
	return &DeliverEventHandler{notifier: notifier}
}

func (h *DeliverEventHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var ev model.OutboxEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		// A payload we cannot read will never get better.
		return fmt.Errorf("unmarshal outbox event: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.notifier.Notify(ctx, ev); err != nil {
		logger.ErrorWithFields("Event delivery failed", err, map[string]interface{}{
			"event_id":   ev.ID,
			"event_type": ev.EventType,
		})
		return fmt.Errorf("notify %s: %w", ev.EventType, err)
	}
	return nil
}
