package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"bookstore-settlement/internal/domains/notification/model"
)

// LogNotifier writes every event as a structured log line. Real delivery
// channels (email, push) plug in behind the same interface.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, ev model.OutboxEvent) error {
	if ev.AggregateType == model.AggregatePayment {
		var p model.PaymentEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.EventType, err)
		}
		log.Info().
			Str("event_id", ev.ID.String()).
			Str("event_type", ev.EventType).
			Str("payment_code", p.PaymentCode).
			Str("order_id", p.OrderID.String()).
			Str("user_id", p.UserID.String()).
			Str("amount", p.Amount.String()).
			Str("status", p.Status).
			Bool("order_cancelled", p.OrderCancelled).
			Msg("notification delivered")
		return nil
	}

	var p model.OrderEventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	log.Info().
		Str("event_id", ev.ID.String()).
		Str("event_type", ev.EventType).
		Str("order_code", p.OrderCode).
		Str("user_id", p.UserID.String()).
		Str("status", p.Status).
		Str("reason", p.Reason).
		Msg("notification delivered")
	return nil
}
