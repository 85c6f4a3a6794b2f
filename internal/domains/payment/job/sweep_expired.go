package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared"
	"bookstore-settlement/pkg/logger"
)

// Sweeper is the part of the payment service this job drives.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time, batchSize int) (*model.SweepResult, error)
}

// ================================================
// SWEEP EXPIRED PAYMENTS JOB HANDLER
// ================================================
type SweepExpiredHandler struct {
	sweeper Sweeper
	now     func() time.Time
}

func NewSweepExpiredHandler(sweeper Sweeper) *SweepExpiredHandler {
	return &SweepExpiredHandler{sweeper: sweeper, now: time.Now}
}

func (h *SweepExpiredHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal sweep payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	logger.Debug("Starting payment sweep")

	res, err := h.sweeper.SweepExpired(ctx, h.now(), payload.BatchSize)
	if err != nil {
		logger.Error("Payment sweep failed", err)
		return fmt.Errorf("sweep expired payments: %w", err)
	}

	if res.Errors > 0 {
		logger.Warn("Payment sweep finished with errors", map[string]interface{}{
			"errors":     res.Errors,
			"scanned":    res.Scanned,
			"batch_size": payload.BatchSize,
		})
	}
	return nil
}
