package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"bookstore-settlement/internal/config"
	"bookstore-settlement/internal/shared"
	"bookstore-settlement/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	sweeper   config.SweeperConfig
}

func NewScheduler(redisOpt asynq.RedisClientOpt, sweeper config.SweeperConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
	}
}

func (s *Scheduler) RegisterJobs() error {
	return s.registerSweepExpiredPaymentsJob()
}

// ================================================
// Sweep expired payments and abandoned orders
// ================================================
func (s *Scheduler) registerSweepExpiredPaymentsJob() error {
	payload, err := json.Marshal(shared.SweepPayload{BatchSize: s.sweeper.BatchSize})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeSweepExpiredPayments, payload)

	// Unique stops a slow run from overlapping the next tick.
	_, err = s.scheduler.Register(
		s.sweeper.Cron,
		task,
		asynq.Queue(shared.QueuePayment),
		asynq.MaxRetry(0),
		asynq.Timeout(4*time.Minute),
		asynq.Unique(4*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register SweepExpiredPayments job", err)
		return fmt.Errorf("register sweep job: %w", err)
	}

	logger.Info("Registered SweepExpiredPayments", map[string]interface{}{
		"cron":       s.sweeper.Cron,
		"batch_size": s.sweeper.BatchSize,
	})
	return nil
}

// Start runs the scheduler in the background; stop it with Shutdown.
func (s *Scheduler) Start() error {
	return s.scheduler.Start()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
