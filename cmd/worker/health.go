package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"bookstore-settlement/internal/domains/payment/model"
	paymentService "bookstore-settlement/internal/domains/payment/service"
	"bookstore-settlement/pkg/container"
	"bookstore-settlement/pkg/logger"
)

const serviceName = "bookstore-settlement-worker"

type pinger interface {
	Ping(ctx context.Context) error
}

type sweepReporter interface {
	LastSweep(ctx context.Context) (*model.SweepResult, error)
}

type healthChecker struct {
	cache    pinger
	sweeps   sweepReporter
	schedule cron.Schedule
	now      func() time.Time
}

type healthBody struct {
	Status  string               `json:"status"`
	Service string               `json:"service"`
	Redis   string               `json:"redis"`
	Sweeper *model.SweeperStatus `json:"sweeper,omitempty"`
}

func (h *healthChecker) check(ctx context.Context) healthBody {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	body := healthBody{Status: "UP", Service: serviceName, Redis: "ok"}
	if err := h.cache.Ping(ctx); err != nil {
		body.Redis = "error: " + err.Error()
	}

	last, err := h.sweeps.LastSweep(ctx)
	if err != nil {
		logger.Error("Failed to read sweeper heartbeat", err)
		return body
	}
	st := paymentService.SweeperHealth(last, h.schedule, h.now())
	body.Sweeper = &st
	return body
}

// health is the liveness probe: the process answers, dependencies are
// reported but do not fail it.
func (h *healthChecker) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.check(r.Context()))
}

// ready fails when Redis is unreachable, since no task can be consumed.
func (h *healthChecker) ready(w http.ResponseWriter, r *http.Request) {
	body := h.check(r.Context())
	code := http.StatusOK
	body.Status = "READY"
	if body.Redis != "ok" {
		code = http.StatusServiceUnavailable
		body.Status = "DOWN"
	}
	writeJSON(w, code, body)
}

func (h *healthChecker) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ready", h.ready)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write health response", err)
	}
}

// runHealthServer serves the probes on the worker health port.
func runHealthServer(ctx context.Context, c *container.Container) error {
	schedule, err := c.Config.Sweeper.Schedule()
	if err != nil {
		return err
	}
	h := &healthChecker{
		cache:    c.Cache,
		sweeps:   c.PaymentService,
		schedule: schedule,
		now:      time.Now,
	}

	srv := &http.Server{
		Addr:              ":" + c.Config.Worker.HealthPort,
		Handler:           h.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Health server starting", map[string]interface{}{"port": c.Config.Worker.HealthPort})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
