package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bookstore-settlement/pkg/container"
	"bookstore-settlement/pkg/logger"
)

func main() {
	envErr := godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	if envErr != nil {
		logger.Warn("No .env file found, using system environment", nil)
	}

	c, err := container.NewContainer()
	if err != nil {
		logger.Error("Failed to initialize container", err)
		os.Exit(1)
	}
	defer c.Cleanup()

	redisOpt := asynq.RedisClientOpt{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Any component failing takes the others down with it.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runAsynqServer(gctx, c, redisOpt) })
	g.Go(func() error { return runScheduler(gctx, c, redisOpt) })
	g.Go(func() error { return runRelay(gctx, c, redisOpt) })
	g.Go(func() error { return runHealthServer(gctx, c) })

	logger.Info("Worker started", map[string]interface{}{
		"redis":       redisOpt.Addr,
		"concurrency": c.Config.Worker.Concurrency,
		"sweeper":     c.Config.Sweeper.Cron,
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", err)
		c.Cleanup()
		os.Exit(1)
	}
	logger.Info("Worker stopped", nil)
}
