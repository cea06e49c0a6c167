package penaltyreset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmallet07/rideflow/core/penalty"
	"github.com/pmallet07/rideflow/infra/logger"
)

func TestNextRunLaterToday(t *testing.T) {
	r := New(nil, "04:00", logger.NopLogger{})
	r.now = func() time.Time {
		return time.Date(2025, 6, 1, 2, 30, 0, 0, time.UTC)
	}

	next := r.nextRun()
	assert.Equal(t, time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC), next)
}

func TestNextRunRollsToTomorrow(t *testing.T) {
	r := New(nil, "04:00", logger.NopLogger{})
	r.now = func() time.Time {
		return time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	}

	next := r.nextRun()
	assert.Equal(t, time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC), next)
}

func TestRunOnceResetsCounters(t *testing.T) {
	store := penalty.NewMemoryStore()
	store.Seed(penalty.State{DriverID: "d1", RejectionCount: 5, AverageRating: 4.6})
	store.Seed(penalty.State{DriverID: "d2", RejectionCount: 2, IsVIP: true, AverageRating: 4.9})

	tracker := penalty.NewTracker(store, logger.NopLogger{}, nil)
	r := New(tracker, "04:00", logger.NopLogger{})

	require.NoError(t, r.RunOnce(context.Background()))

	st, err := store.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.RejectionCount)

	st, err = store.Get(context.Background(), "d2")
	require.NoError(t, err)
	assert.Equal(t, 2, st.RejectionCount, "VIP counters are left alone")
}
