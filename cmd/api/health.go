package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"bookstore-settlement/internal/domains/payment/model"
	paymentService "bookstore-settlement/internal/domains/payment/service"
	"bookstore-settlement/pkg/container"
)

type dbChecker interface {
	HealthCheck(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type sweepReporter interface {
	LastSweep(ctx context.Context) (*model.SweepResult, error)
}

type healthDeps struct {
	version  string
	db       dbChecker
	cache    pinger
	redis    bool
	sweeps   sweepReporter
	schedule cron.Schedule
	now      func() time.Time
}

func newHealthDeps(c *container.Container) healthDeps {
	// Validated in config.Load.
	schedule, _ := c.Config.Sweeper.Schedule()
	return healthDeps{
		version:  c.Config.App.Version,
		db:       c.DB,
		cache:    c.Cache,
		redis:    c.RedisAvailable(),
		sweeps:   c.PaymentService,
		schedule: schedule,
		now:      time.Now,
	}
}

// healthCheckHandler reports the database, the cache and the sweeper
// heartbeat. Only a failing database makes the API unhealthy.
func healthCheckHandler(d healthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"

		dbStatus := "ok"
		if err := d.db.HealthCheck(ctx); err != nil {
			dbStatus = "error: " + err.Error()
			status = "degraded"
		}

		cacheStatus := "ok"
		if !d.redis {
			cacheStatus = "memory"
		}
		if err := d.cache.Ping(ctx); err != nil {
			cacheStatus = "error: " + err.Error()
			status = "degraded"
		}

		var sweeper interface{}
		last, err := d.sweeps.LastSweep(ctx)
		if err != nil {
			sweeper = gin.H{"error": err.Error()}
		} else {
			st := paymentService.SweeperHealth(last, d.schedule, d.now())
			if st.Stale {
				status = "degraded"
			}
			sweeper = st
		}

		code := http.StatusOK
		if dbStatus != "ok" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": d.now().Format(time.RFC3339),
			"version":   d.version,
			"services": gin.H{
				"database": dbStatus,
				"cache":    cacheStatus,
				"sweeper":  sweeper,
			},
		})
	}
}
