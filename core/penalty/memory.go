package penalty

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and local runs. It mirrors
// the atomicity guarantees of the Redis store under a single mutex.
type MemoryStore struct {
	mu      sync.Mutex
	drivers map[string]*State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[string]*State)}
}

// Seed inserts or replaces a driver record.
func (m *MemoryStore) Seed(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := st
	m.drivers[st.DriverID] = &cp
}

func (m *MemoryStore) Get(_ context.Context, driverID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.drivers[driverID]
	if !ok {
		return State{}, ErrUnknownDriver
	}
	return *st, nil
}

func (m *MemoryStore) IncrRejections(_ context.Context, driverID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.drivers[driverID]
	if !ok || st.IsVIP {
		return 0, false, nil
	}
	st.RejectionCount++
	return st.RejectionCount, true, nil
}

func (m *MemoryStore) Silence(_ context.Context, driverID string, until time.Time, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.drivers[driverID]
	if !ok {
		return ErrUnknownDriver
	}
	st.PenaltyUntil = &until
	st.LastPenaltyMinutes = minutes
	return nil
}

func (m *MemoryStore) PenalizeCancellation(_ context.Context, driverID string, until time.Time, minutes int, ratingDelta float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.drivers[driverID]
	if !ok || st.IsVIP {
		return false, nil
	}
	st.PenaltyUntil = &until
	st.LastPenaltyMinutes = minutes
	st.AverageRating = roundRating(st.AverageRating - ratingDelta)
	return true, nil
}

func (m *MemoryStore) ResetRejectionCounts(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, st := range m.drivers {
		if st.IsVIP || st.RejectionCount == 0 {
			continue
		}
		st.RejectionCount = 0
		n++
	}
	return n, nil
}

func roundRating(r float64) float64 {
	if r < 0 {
		return 0
	}
	return math.Round(r*10) / 10
}
