package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	notifService "bookstore-settlement/internal/domains/notification/service"
	"bookstore-settlement/internal/infrastructure/queue"
	"bookstore-settlement/pkg/container"
	"bookstore-settlement/pkg/logger"
)

// runScheduler enqueues the periodic sweep until ctx is cancelled.
func runScheduler(ctx context.Context, c *container.Container, redisOpt asynq.RedisClientOpt) error {
	scheduler := queue.NewScheduler(redisOpt, c.Config.Sweeper)
	if err := scheduler.RegisterJobs(); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	logger.Info("Scheduler shutting down", nil)
	scheduler.Shutdown()
	return nil
}

// runRelay publishes committed outbox events onto the notification queue.
func runRelay(ctx context.Context, c *container.Container, redisOpt asynq.RedisClientOpt) error {
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	relay := notifService.NewRelay(
		c.OutboxRepo,
		queue.NewEventPublisher(client),
		c.Config.Worker.RelayBatchSize,
		c.Config.Worker.RelayInterval,
	)
	return relay.Run(ctx)
}
