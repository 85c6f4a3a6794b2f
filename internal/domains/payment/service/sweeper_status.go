package service

import (
	"time"

	"github.com/robfig/cron/v3"

	"bookstore-settlement/internal/domains/payment/model"
)

// staleGrace is how long past its scheduled slot a sweep may be late before
// the heartbeat is reported stale.
const staleGrace = 2 * time.Minute

// SweeperHealth derives the sweeper status from the last heartbeat. With no
// heartbeat the sweeper is stale and the next run is computed from now.
func SweeperHealth(last *model.SweepResult, schedule cron.Schedule, now time.Time) model.SweeperStatus {
	if last == nil {
		next := schedule.Next(now)
		return model.SweeperStatus{NextRun: &next, Stale: true}
	}

	lastRun := last.StartedAt
	next := schedule.Next(lastRun)
	return model.SweeperStatus{
		LastRun: &lastRun,
		NextRun: &next,
		Stale:   now.After(next.Add(staleGrace)),
		Errors:  last.Errors,
	}
}
