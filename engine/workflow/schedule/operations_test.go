package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow/schedule"
)

func TestDeriveSchedule(t *testing.T) {
	now := time.Now().UTC()
	wfID := core.MustNewID()

	t.Run("one-shot from delay_seconds", func(t *testing.T) {
		sch, err := schedule.DeriveSchedule(wfID, map[string]any{"delay_seconds": float64(30)}, now)
		require.NoError(t, err)
		assert.True(t, sch.IsOneShot())
		assert.WithinDuration(t, now.Add(30*time.Second), sch.NextRun, time.Second)
	})

	t.Run("recurring with max_occurrences", func(t *testing.T) {
		sch, err := schedule.DeriveSchedule(wfID, map[string]any{
			"interval_seconds": float64(60),
			"max_occurrences":  float64(5),
		}, now)
		require.NoError(t, err)
		assert.False(t, sch.IsOneShot())
		require.NotNil(t, sch.MaxOccurrences)
		assert.Equal(t, int64(5), *sch.MaxOccurrences)
	})

	t.Run("until parses RFC3339", func(t *testing.T) {
		sch, err := schedule.DeriveSchedule(wfID, map[string]any{
			"interval_seconds": float64(60),
			"until":            "2030-01-01T00:00:00Z",
		}, now)
		require.NoError(t, err)
		require.NotNil(t, sch.Until)
		assert.Equal(t, 2030, sch.Until.Year())
	})

	t.Run("invalid until is an error", func(t *testing.T) {
		_, err := schedule.DeriveSchedule(wfID, map[string]any{"until": "not-a-date"}, now)
		assert.Error(t, err)
	})

	t.Run("carries context through", func(t *testing.T) {
		sch, err := schedule.DeriveSchedule(wfID, map[string]any{"context": map[string]any{"k": "v"}}, now)
		require.NoError(t, err)
		assert.Equal(t, "v", sch.Context["k"])
	})
}
