package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	notifModel "bookstore-settlement/internal/domains/notification/model"
	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/pkg/database"
	"bookstore-settlement/pkg/logger"
)

const heartbeatTTL = 24 * time.Hour

type sweepOutcome int

const (
	sweepSkipped sweepOutcome = iota
	sweepExpired
	sweepExpiredAndCancelled
)

// =====================================================
// EXPIRATION SWEEPER
// =====================================================

// SweepExpired expires PENDING payments whose TTL has passed, then cancels
// orders that were left without any open payment. Each payment and each
// order is handled in its own transaction; a failure on one is counted and
// the sweep moves on. Concurrent sweeps and late callbacks are safe: the
// row lock is re-taken and the state re-checked before anything changes.
// batchSize caps each pass; zero or less uses the configured size.
func (s *paymentService) SweepExpired(ctx context.Context, now time.Time, batchSize int) (*model.SweepResult, error) {
	if batchSize <= 0 {
		batchSize = s.settings.SweepBatchSize
	}
	result := &model.SweepResult{StartedAt: now}

	ids, err := s.paymentRepo.ListExpiredPendingIDs(ctx, now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list expired payments: %w", err)
	}
	result.Scanned = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := s.expireOne(ctx, id, now)
		if err != nil {
			result.Errors++
			logger.ErrorWithFields("Failed to expire payment", err, map[string]interface{}{"payment_id": id})
			continue
		}
		switch outcome {
		case sweepSkipped:
			result.Skipped++
		case sweepExpired:
			result.Expired++
		case sweepExpiredAndCancelled:
			result.Expired++
			result.OrdersCancelled++
		}
	}

	orderIDs, err := s.orderRepo.ListAbandonedIDs(ctx, now.Add(-s.settings.AbandonedAfter), batchSize)
	if err != nil {
		return nil, fmt.Errorf("list abandoned orders: %w", err)
	}
	for _, id := range orderIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		cancelled, err := s.cancelAbandoned(ctx, id, now)
		if err != nil {
			result.Errors++
			logger.ErrorWithFields("Failed to cancel abandoned order", err, map[string]interface{}{"order_id": id})
			continue
		}
		if cancelled {
			result.Abandoned++
		}
	}

	result.FinishedAt = s.now()
	if err := s.cache.Set(ctx, SweeperHeartbeatKey, result, heartbeatTTL); err != nil {
		logger.Error("Failed to store sweeper heartbeat", err)
	}

	logger.Info("Payment sweep finished", map[string]interface{}{
		"scanned":          result.Scanned,
		"expired":          result.Expired,
		"skipped":          result.Skipped,
		"orders_cancelled": result.OrdersCancelled,
		"abandoned":        result.Abandoned,
		"errors":           result.Errors,
	})
	return result, nil
}

func (s *paymentService) expireOne(ctx context.Context, paymentID uuid.UUID, now time.Time) (sweepOutcome, error) {
	return database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (sweepOutcome, error) {
		p, err := s.paymentRepo.GetByIDForUpdateWithTx(ctx, tx, paymentID)
		if err != nil {
			return sweepSkipped, err
		}
		// A callback or another sweep got here first.
		if p.Status != model.StatusPending || !p.IsExpired(now) {
			return sweepSkipped, nil
		}

		if err := s.expirePayment(ctx, tx, p, now, "payment window expired"); err != nil {
			return sweepSkipped, err
		}

		order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, p.OrderID)
		if err != nil {
			return sweepSkipped, mapOrderError(err)
		}

		cancelled := false
		if order.Status == orderModel.StatusPendingPayment {
			pending, err := s.paymentRepo.HasPendingWithTx(ctx, tx, order.ID)
			if err != nil {
				return sweepSkipped, err
			}
			if !pending {
				if err := s.cancelOrderTx(ctx, tx, order, "payment expired", now); err != nil {
					return sweepSkipped, err
				}
				cancelled = true
			}
		}

		if err := s.emitPaymentEvent(ctx, tx, model.EventPaymentExpired, p, order, now, func(pl *notifModel.PaymentEventPayload) {
			pl.OrderCancelled = cancelled
		}); err != nil {
			return sweepSkipped, err
		}

		if cancelled {
			return sweepExpiredAndCancelled, nil
		}
		return sweepExpired, nil
	})
}

// cancelAbandoned cancels an order that has sat in PENDING_PAYMENT with no
// open payment, typically after a failed attempt the customer never
// retried.
func (s *paymentService) cancelAbandoned(ctx context.Context, orderID uuid.UUID, now time.Time) (bool, error) {
	cutoff := now.Add(-s.settings.AbandonedAfter)
	return database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (bool, error) {
		order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, orderID)
		if err != nil {
			return false, mapOrderError(err)
		}
		if order.Status != orderModel.StatusPendingPayment || !order.UpdatedAt.Before(cutoff) {
			return false, nil
		}
		pending, err := s.paymentRepo.HasPendingWithTx(ctx, tx, order.ID)
		if err != nil || pending {
			return false, err
		}

		if err := s.cancelOrderTx(ctx, tx, order, "abandoned without payment", now); err != nil {
			return false, err
		}

		ev, err := notifModel.NewOutboxEvent(notifModel.AggregateOrder, order.ID, notifModel.EventOrderCancelled,
			notifModel.OrderEventPayload{
				OrderID:    order.ID,
				OrderCode:  order.OrderCode,
				UserID:     order.UserID,
				Status:     string(order.Status),
				Reason:     "abandoned without payment",
				OccurredAt: now,
			}, now)
		if err != nil {
			return false, err
		}
		if err := s.outbox.AppendWithTx(ctx, tx, ev); err != nil {
			return false, fmt.Errorf("append outbox event: %w", err)
		}
		return true, nil
	})
}

// cancelOrderTx cancels as the system (no actor) and returns the stock.
func (s *paymentService) cancelOrderTx(ctx context.Context, tx pgx.Tx, order *orderModel.Order, reason string, now time.Time) error {
	if err := order.Cancel(nil, reason, now); err != nil {
		return err
	}
	if err := s.releaseOrderStock(ctx, tx, order, reason); err != nil {
		return err
	}
	if err := s.orderRepo.UpdateWithTx(ctx, tx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// LastSweep returns the heartbeat of the most recent sweep, or nil if no
// sweep ran within the heartbeat TTL.
func (s *paymentService) LastSweep(ctx context.Context) (*model.SweepResult, error) {
	var res model.SweepResult
	found, err := s.cache.Get(ctx, SweeperHeartbeatKey, &res)
	if err != nil || !found {
		return nil, err
	}
	return &res, nil
}
