package penalty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRejectionLadder(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(State{DriverID: "d1", AverageRating: 4.8})
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(store, nopLogger{}, fixedClock(base))
	ctx := context.Background()

	wantWindows := map[int]int{3: 5, 6: 10, 9: 15}
	for i := 1; i <= 9; i++ {
		require.NoError(t, tracker.RecordRejection(ctx, "d1"))
		st, err := store.Get(ctx, "d1")
		require.NoError(t, err)
		assert.Equal(t, i, st.RejectionCount)

		if minutes, escalates := wantWindows[i]; escalates {
			require.NotNil(t, st.PenaltyUntil, "rejection %d must open a window", i)
			assert.Equal(t, minutes, st.LastPenaltyMinutes)
			assert.Equal(t, base.Add(time.Duration(minutes)*time.Minute), *st.PenaltyUntil)
		}
	}
	// The ladder never touches the rating.
	st, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 4.8, st.AverageRating)
}

func TestRejectionIgnoresVIPAndUnknown(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(State{DriverID: "vip", IsVIP: true, AverageRating: 5.0})
	tracker := NewTracker(store, nopLogger{}, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, tracker.RecordRejection(ctx, "vip"))
		require.NoError(t, tracker.RecordRejection(ctx, "ghost"))
	}
	st, err := store.Get(ctx, "vip")
	require.NoError(t, err)
	assert.Zero(t, st.RejectionCount)
	assert.Nil(t, st.PenaltyUntil)
	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestCancellationPenalty(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(State{DriverID: "d1", AverageRating: 4.8})
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(store, nopLogger{}, fixedClock(base))
	ctx := context.Background()

	require.NoError(t, tracker.RecordCancellation(ctx, "d1"))
	st, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 4.7, st.AverageRating)
	assert.Equal(t, 5, st.LastPenaltyMinutes)
	require.NotNil(t, st.PenaltyUntil)
	assert.Equal(t, base.Add(5*time.Minute), *st.PenaltyUntil)
}

func TestCancellationRatingFloorsAtZero(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(State{DriverID: "d1", AverageRating: 0.05})
	tracker := NewTracker(store, nopLogger{}, nil)
	ctx := context.Background()

	require.NoError(t, tracker.RecordCancellation(ctx, "d1"))
	st, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.AverageRating)

	// Floored ratings stay floored.
	require.NoError(t, tracker.RecordCancellation(ctx, "d1"))
	st, _ = store.Get(ctx, "d1")
	assert.Equal(t, 0.0, st.AverageRating)
}

func TestCancellationIgnoresVIP(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(State{DriverID: "vip", IsVIP: true, AverageRating: 4.9})
	tracker := NewTracker(store, nopLogger{}, nil)

	require.NoError(t, tracker.RecordCancellation(context.Background(), "vip"))
	st, err := store.Get(context.Background(), "vip")
	require.NoError(t, err)
	assert.Equal(t, 4.9, st.AverageRating)
	assert.Nil(t, st.PenaltyUntil)
}

func TestResetAllRejectionCounts(t *testing.T) {
	store := NewMemoryStore()
	store.Seed(State{DriverID: "d1", RejectionCount: 4})
	store.Seed(State{DriverID: "d2", RejectionCount: 0})
	store.Seed(State{DriverID: "vip", IsVIP: true, RejectionCount: 8})
	tracker := NewTracker(store, nopLogger{}, nil)
	ctx := context.Background()

	require.NoError(t, tracker.ResetAllRejectionCounts(ctx))
	d1, _ := store.Get(ctx, "d1")
	vip, _ := store.Get(ctx, "vip")
	assert.Zero(t, d1.RejectionCount)
	assert.Equal(t, 8, vip.RejectionCount, "VIP counters are left alone")
}
