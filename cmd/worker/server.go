package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"bookstore-settlement/internal/shared"
	"bookstore-settlement/pkg/container"
	"bookstore-settlement/pkg/logger"
)

// runAsynqServer processes queued tasks until ctx is cancelled. Shutdown
// waits for in-flight tasks up to the server's shutdown timeout.
func runAsynqServer(ctx context.Context, c *container.Container, redisOpt asynq.RedisClientOpt) error {
	mux := asynq.NewServeMux()
	registerHandlers(mux, c)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      shared.Queues(),
		Concurrency: c.Config.Worker.Concurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.ErrorWithFields("Task failed", err, map[string]interface{}{
				"type": task.Type(),
			})
		}),
	})

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	logger.Info("Asynq server started", map[string]interface{}{"queues": shared.Queues()})

	<-ctx.Done()
	logger.Info("Asynq server shutting down", nil)
	srv.Shutdown()
	return nil
}
