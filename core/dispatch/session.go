package dispatch

import (
	"sync"
	"time"

	"github.com/pmallet07/rideflow/core/model"
)

// session is the ephemeral per-ride state machine. All fields below mu are
// guarded by it; the fields above are set once at creation and read freely.
type session struct {
	rideID      string
	passengerID string
	offer       model.RideOffer
	pickup      model.Point
	filters     model.DriverFilters
	startedAt   time.Time

	mu sync.Mutex
	// done flips exactly once when the session leaves the registry. Timer
	// callbacks and public operations racing teardown check it first.
	done  bool
	timer *time.Timer
	// timerGen invalidates callbacks of replaced timers: a timeout that
	// already fired but lost the lock race against a reset must not act.
	timerGen uint64
	// notified is keyed by driver id and only ever grows.
	notified      map[string]struct{}
	notifiedOrder []string
	// skipped is keyed by user id; a skipped driver is never re-offered
	// within this dispatch lifetime.
	skipped map[string]struct{}
	round   int
	cycles  int
	queue   []model.Candidate
	nextIdx int
	// currentUserID is non-empty exactly while an offer timer is armed for
	// that driver.
	currentUserID   string
	currentDriverID string
	offeredAt       time.Time
	window          time.Duration
	radiusM         float64
}

func newSession(r model.Ride, notified []string, now time.Time) *session {
	s := &session{
		rideID:      r.ID,
		passengerID: r.PassengerID,
		offer:       model.NewRideOffer(r),
		pickup:      r.PickupPoint,
		filters:     model.FiltersFor(r),
		startedAt:   now,
		notified:    make(map[string]struct{}, len(notified)),
		skipped:     make(map[string]struct{}),
	}
	for _, id := range notified {
		if _, ok := s.notified[id]; ok {
			continue
		}
		s.notified[id] = struct{}{}
		s.notifiedOrder = append(s.notifiedOrder, id)
	}
	return s
}

// arm replaces the pending timer. Exactly one timer exists per session: the
// current driver's window or the retry backoff, never both. The callback
// receives the generation it was armed with.
func (s *session) arm(d time.Duration, fn func(gen uint64)) {
	s.stopTimer()
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(d, func() { fn(gen) })
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// recordNotified marks the driver as seen and returns a snapshot of the full
// ordered id list for persistence.
func (s *session) recordNotified(driverID string) []string {
	if _, ok := s.notified[driverID]; !ok {
		s.notified[driverID] = struct{}{}
		s.notifiedOrder = append(s.notifiedOrder, driverID)
	}
	ids := make([]string, len(s.notifiedOrder))
	copy(ids, s.notifiedOrder)
	return ids
}

func (s *session) wasNotified(driverID string) bool {
	_, ok := s.notified[driverID]
	return ok
}

func (s *session) wasSkipped(userID string) bool {
	_, ok := s.skipped[userID]
	return ok
}
