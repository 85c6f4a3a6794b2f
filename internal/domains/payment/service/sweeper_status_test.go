package service

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore-settlement/internal/domains/payment/model"
)

func TestSweeperHealth(t *testing.T) {
	schedule, err := cron.ParseStandard("*/5 * * * *")
	require.NoError(t, err)
	ran := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		last      *model.SweepResult
		now       time.Time
		wantStale bool
		wantNext  time.Time
	}{
		{"never ran", nil, ran, true, ran.Add(5 * time.Minute)},
		{"fresh", &model.SweepResult{StartedAt: ran}, ran.Add(3 * time.Minute), false, ran.Add(5 * time.Minute)},
		{"within grace", &model.SweepResult{StartedAt: ran}, ran.Add(6 * time.Minute), false, ran.Add(5 * time.Minute)},
		{"missed a slot", &model.SweepResult{StartedAt: ran}, ran.Add(8 * time.Minute), true, ran.Add(5 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := SweeperHealth(tt.last, schedule, tt.now)
			assert.Equal(t, tt.wantStale, st.Stale)
			require.NotNil(t, st.NextRun)
			assert.True(t, tt.wantNext.Equal(*st.NextRun), "next run %s", st.NextRun)
			if tt.last == nil {
				assert.Nil(t, st.LastRun)
			}
		})
	}
}
