package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore-settlement/internal/domains/payment/model"
)

type fakeCheck struct{ err error }

func (f fakeCheck) HealthCheck(context.Context) error { return f.err }
func (f fakeCheck) Ping(context.Context) error { return f.err }

type fakeSweeps struct{ last *model.SweepResult }

func (f fakeSweeps) LastSweep(context.Context) (*model.SweepResult, error) { return f.last, nil }

func runHealth(t *testing.T, d healthDeps) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", healthCheckHandler(d))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthCheck(t *testing.T) {
	schedule, err := cron.ParseStandard("*/5 * * * *")
	require.NoError(t, err)
	now := time.Date(2026, 5, 4, 10, 3, 0, 0, time.UTC)
	fresh := &model.SweepResult{StartedAt: now.Add(-3 * time.Minute)}

	base := func() healthDeps {
		return healthDeps{
			version:  "test",
			db:       fakeCheck{},
			cache:    fakeCheck{},
			redis:    true,
			sweeps:   fakeSweeps{last: fresh},
			schedule: schedule,
			now:      func() time.Time { return now },
		}
	}

	t.Run("all healthy", func(t *testing.T) {
		code, body := runHealth(t, base())
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body["status"])
		sweeper := body["services"].(map[string]interface{})["sweeper"].(map[string]interface{})
		assert.Equal(t, false, sweeper["stale"])
		assert.NotNil(t, sweeper["sweeper_last_run"])
	})

	t.Run("database down", func(t *testing.T) {
		d := base()
		d.db = fakeCheck{err: errors.New("connection refused")}
		code, body := runHealth(t, d)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", body["status"])
	})

	t.Run("sweeper never ran", func(t *testing.T) {
		d := base()
		d.sweeps = fakeSweeps{}
		code, body := runHealth(t, d)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", body["status"])
		sweeper := body["services"].(map[string]interface{})["sweeper"].(map[string]interface{})
		assert.Equal(t, true, sweeper["stale"])
		assert.Nil(t, sweeper["sweeper_last_run"])
	})

	t.Run("memory cache", func(t *testing.T) {
		d := base()
		d.redis = false
		_, body := runHealth(t, d)
		assert.Equal(t, "memory", body["services"].(map[string]interface{})["cache"])
	})
}
