package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pmallet07/rideflow/core/events"
	"github.com/pmallet07/rideflow/core/logger"
	"github.com/pmallet07/rideflow/core/matching"
	"github.com/pmallet07/rideflow/core/metrics"
	"github.com/pmallet07/rideflow/core/model"
	"github.com/pmallet07/rideflow/core/penalty"
	"github.com/pmallet07/rideflow/core/push"
	"github.com/pmallet07/rideflow/core/ride"
	"github.com/pmallet07/rideflow/internal/eventbus"
)

// depTimeout bounds every repository and matching call made from timer
// goroutines, which have no caller context to inherit.
const depTimeout = 5 * time.Second

// CancelReasonNoDriver is written to the ride record when the time budget
// expires without an acceptance.
const CancelReasonNoDriver = "no_driver_found"

// RiderProgress is pushed to the rider while candidates are being tried. It
// deliberately carries the display name only: VIP status and raw driver ids
// never reach the rider.
type RiderProgress struct {
	RideID     string `json:"ride_id"`
	DriverName string `json:"driver_name"`
}

// RiderNotice is pushed to the rider on cycle resets and on give-up.
type RiderNotice struct {
	RideID string `json:"ride_id"`
	Reason string `json:"reason,omitempty"`
}

// OfferWithdrawal tells a driver the offer it is holding is gone.
type OfferWithdrawal struct {
	RideID string `json:"ride_id"`
}

// Orchestrator owns one waterfall session per active ride. All session
// mutation happens under the session's own mutex, so public operations,
// timer callbacks and round advancement may race freely.
type Orchestrator struct {
	rides     ride.Repository
	matcher   matching.Matcher
	pub       push.Publisher
	penalties *penalty.Tracker
	rounds    RoundSource
	cfg       Config
	sink      metrics.OutcomeSink
	bus       eventbus.EventBus
	log       logger.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewOrchestrator creates an Orchestrator. sink and bus may be nil.
func NewOrchestrator(rides ride.Repository, matcher matching.Matcher, pub push.Publisher, penalties *penalty.Tracker, rounds RoundSource, cfg Config, sink metrics.OutcomeSink, bus eventbus.EventBus, log logger.Logger) (*Orchestrator, error) {
	if rides == nil || matcher == nil || pub == nil || penalties == nil || rounds == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewOrchestrator")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		rides:     rides,
		matcher:   matcher,
		pub:       pub,
		penalties: penalties,
		rounds:    rounds,
		cfg:       cfg,
		sink:      sink,
		bus:       bus,
		log:       log,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}, nil
}

// SetClock replaces the time source, for tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// ActiveSessions reports how many rides are currently being dispatched.
func (o *Orchestrator) ActiveSessions() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// StartDispatch begins the waterfall for a pending ride. The notified-driver
// list is seeded from the persisted ride record, so a process restart never
// re-offers the ride to drivers who already saw it. A session that already
// exists for the ride makes this a no-op.
func (o *Orchestrator) StartDispatch(ctx context.Context, r model.Ride) error {
	if err := r.Validate(); err != nil {
		return err
	}
	rec, err := o.rides.Find(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("read ride %s: %w", r.ID, err)
	}
	if rec.Status != model.StatusPending {
		o.log.Infof("ride %s is %s, not dispatching", r.ID, rec.Status)
		return nil
	}

	s := newSession(r, rec.NotifiedDriverIDs, o.now())
	o.mu.Lock()
	if _, exists := o.sessions[r.ID]; exists {
		o.mu.Unlock()
		return nil
	}
	o.sessions[r.ID] = s
	o.mu.Unlock()
	activeSessions.Inc()
	o.log.Infof("dispatch started for ride %s (%d drivers already notified)", r.ID, len(rec.NotifiedDriverIDs))

	go o.startRound(s)
	return nil
}

// MarkDriverSkipped records an explicit decline. The driver is excluded from
// every later round of this dispatch; if it is the currently awaited driver,
// its timer is cancelled, a withdrawal notice is pushed and the waterfall
// advances immediately.
func (o *Orchestrator) MarkDriverSkipped(rideID, userID string) {
	s := o.session(rideID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.skipped[userID] = struct{}{}
	if s.currentUserID != userID {
		s.mu.Unlock()
		o.publishBus(events.DriverSkipped{RideID: rideID, UserID: userID, Current: false})
		return
	}
	driverID := s.currentDriverID
	waited := o.now().Sub(s.offeredAt)
	round, radius := s.round, s.radiusM
	s.stopTimer()
	s.currentUserID, s.currentDriverID = "", ""
	s.mu.Unlock()

	offerSkips.Inc()
	o.publishBus(events.DriverSkipped{RideID: rideID, UserID: userID, Current: true})
	o.publishTo(push.DriverChannel(userID), push.EventOfferWithdrawn, OfferWithdrawal{RideID: rideID})
	o.recordRejection(driverID)
	o.recordOffer(s, driverID, round, radius, metrics.OutcomeSkipped, waited)
	o.notifyNext(s)
}

// ResetDriverTimer restarts the awaited driver's window at full length, e.g.
// when the driver app acknowledges it is showing the offer. It returns false
// when the driver is no longer the awaited one, which resolves the race with
// a timeout firing at the same instant.
func (o *Orchestrator) ResetDriverTimer(rideID, userID string) bool {
	s := o.session(rideID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	if s.done || s.currentUserID != userID {
		s.mu.Unlock()
		return false
	}
	s.offeredAt = o.now()
	window := s.window
	s.arm(window, func(gen uint64) { o.onOfferTimeout(s, userID, gen) })
	s.mu.Unlock()
	o.publishBus(events.TimerReset{RideID: rideID, UserID: userID})
	return true
}

// CancelDispatch terminates the session. acceptedUserID names the driver who
// won the ride, or is empty for an external cancellation; if a different
// driver is currently awaited, that driver gets a withdrawal notice.
func (o *Orchestrator) CancelDispatch(rideID, acceptedUserID string) {
	s := o.takeSession(rideID)
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.stopTimer()
	awaited := s.currentUserID
	driverID := s.currentDriverID
	waited := o.now().Sub(s.offeredAt)
	round, radius := s.round, s.radiusM
	s.currentUserID, s.currentDriverID = "", ""
	s.mu.Unlock()

	if awaited != "" && awaited != acceptedUserID {
		o.publishTo(push.DriverChannel(awaited), push.EventOfferWithdrawn, OfferWithdrawal{RideID: rideID})
		o.recordOffer(s, driverID, round, radius, metrics.OutcomeWithdrawn, waited)
	}
	reason := events.EndCancelled
	if acceptedUserID != "" {
		reason = events.EndAccepted
		if acceptedUserID == awaited {
			o.recordOffer(s, driverID, round, radius, metrics.OutcomeAccepted, waited)
		}
	}
	o.finishSession(s, reason)
}

// session returns the live session for the ride, or nil.
func (o *Orchestrator) session(rideID string) *session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessions[rideID]
}

// takeSession removes and returns the session for the ride, or nil.
func (o *Orchestrator) takeSession(rideID string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.sessions[rideID]
	delete(o.sessions, rideID)
	return s
}

// startRound re-reads the ladder, re-validates the ride and fills the round
// queue from the matching service.
func (o *Orchestrator) startRound(s *session) {
	ladder := o.rounds.Rounds()
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	idx := s.round
	s.mu.Unlock()
	if idx >= len(ladder) {
		o.handleExhausted(s)
		return
	}
	rc := ladder[idx]

	if !o.stillPending(s) {
		o.teardown(s, events.EndNotPending)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), depTimeout)
	cands, err := o.matcher.FindCandidates(ctx, s.pickup, rc.RadiusMeters, o.cfg.CandidateLimit, s.filters)
	cancel()
	if err != nil {
		// A failed candidate query is not "zero candidates": the cycle is
		// abandoned and retried after the backoff, still under the budget.
		matchingFailures.Inc()
		o.log.Errorf("candidate query failed for ride %s round %d: %v", s.rideID, idx, err)
		o.handleExhausted(s)
		return
	}

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	queue := cands[:0:0]
	for _, c := range cands {
		if s.wasNotified(c.DriverID) || s.wasSkipped(c.UserID) {
			continue
		}
		queue = append(queue, c)
	}
	s.queue = queue
	s.nextIdx = 0
	s.window = rc.Interval
	s.radiusM = rc.RadiusMeters
	s.mu.Unlock()
	o.log.Debugf("ride %s round %d: %d/%d candidates eligible at %.0fm", s.rideID, idx, len(queue), len(cands), rc.RadiusMeters)
	o.notifyNext(s)
}

// notifyNext offers the ride to the next eligible candidate. Stale entries
// are consumed in a loop rather than by recursing, so a fully stale queue
// costs no stack.
func (o *Orchestrator) notifyNext(s *session) {
	for {
		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return
		}
		if s.nextIdx >= len(s.queue) {
			s.round++
			s.mu.Unlock()
			o.startRound(s)
			return
		}
		c := s.queue[s.nextIdx]
		s.nextIdx++
		if s.wasNotified(c.DriverID) || s.wasSkipped(c.UserID) {
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		if !o.stillPending(s) {
			o.teardown(s, events.EndNotPending)
			return
		}

		// The offer must reach the transport before its timer starts
		// counting against the driver.
		o.publishTo(push.DriverChannel(c.UserID), push.EventRideOffer, s.offer)
		o.publishTo(push.RiderChannel(s.passengerID), push.EventSearchProgress, RiderProgress{RideID: s.rideID, DriverName: c.DisplayName})

		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return
		}
		if s.wasSkipped(c.UserID) {
			// Skip raced the publish. The driver was not awaited yet, so
			// no withdrawal went out; its own offer countdown clears the
			// stale push. Just move on.
			s.mu.Unlock()
			continue
		}
		ids := s.recordNotified(c.DriverID)
		s.currentUserID = c.UserID
		s.currentDriverID = c.DriverID
		s.offeredAt = o.now()
		window := s.window
		round, radius := s.round, s.radiusM
		userID := c.UserID
		s.arm(window, func(gen uint64) { o.onOfferTimeout(s, userID, gen) })
		s.mu.Unlock()

		offersSent.Inc()
		o.publishBus(events.OfferSent{
			RideID:     s.rideID,
			DriverID:   c.DriverID,
			UserID:     c.UserID,
			Round:      round,
			RadiusM:    radius,
			Window:     window,
			NotifiedAt: o.now(),
		})
		go o.persistNotified(s.rideID, ids)
		return
	}
}

// onOfferTimeout fires when the awaited driver let the window lapse. The
// identity check drops callbacks that lost a race against a skip, a reset or
// teardown. No withdrawal notice goes out here: the driver app runs its own
// symmetric countdown, and a notice could tear down a still-valid offer the
// same driver holds from a concurrent dispatch of another ride.
func (o *Orchestrator) onOfferTimeout(s *session, userID string, gen uint64) {
	s.mu.Lock()
	if s.done || s.timerGen != gen || s.currentUserID != userID {
		s.mu.Unlock()
		return
	}
	driverID := s.currentDriverID
	waited := o.now().Sub(s.offeredAt)
	round, radius := s.round, s.radiusM
	s.currentUserID, s.currentDriverID = "", ""
	s.timer = nil
	s.mu.Unlock()

	offerTimeouts.Inc()
	o.publishBus(events.OfferTimedOut{RideID: s.rideID, DriverID: driverID, UserID: userID, Round: round})
	o.recordRejection(driverID)
	o.recordOffer(s, driverID, round, radius, metrics.OutcomeTimedOut, waited)
	o.notifyNext(s)
}

// handleExhausted runs when every configured round came up empty. Within the
// budget the cycle restarts at round zero after a backoff, keeping the
// notified and skipped sets so only newly eligible drivers are absorbed.
// Past the budget the ride is cancelled and the rider told exactly once.
func (o *Orchestrator) handleExhausted(s *session) {
	elapsed := o.now().Sub(s.startedAt)
	if elapsed < o.cfg.TotalBudget {
		s.mu.Lock()
		if s.done {
			s.mu.Unlock()
			return
		}
		s.round = 0
		s.cycles++
		s.currentUserID, s.currentDriverID = "", ""
		s.arm(o.cfg.RetryBackoff, func(uint64) { o.startRound(s) })
		s.mu.Unlock()
		cycleResets.Inc()
		o.publishTo(push.RiderChannel(s.passengerID), push.EventSearchReset, RiderNotice{RideID: s.rideID})
		o.publishBus(events.CycleReset{RideID: s.rideID, Elapsed: elapsed})
		o.log.Infof("ride %s: cycle exhausted after %s, retrying", s.rideID, elapsed.Round(time.Second))
		return
	}

	if !o.removeSession(s) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), depTimeout)
	cancelled, err := o.rides.MarkCancelled(ctx, s.rideID, CancelReasonNoDriver, o.now())
	cancel()
	if err != nil {
		o.log.Errorf("mark ride %s cancelled: %v", s.rideID, err)
	}
	if cancelled {
		// The conditional update is the exactly-once guard for this
		// notification: a concurrent acceptance leaves it unsent.
		ridesGivenUp.Inc()
		o.publishTo(push.RiderChannel(s.passengerID), push.EventNoDriverFound, RiderNotice{RideID: s.rideID, Reason: CancelReasonNoDriver})
	}
	o.finishSession(s, events.EndExhausted)
}

// stillPending re-validates the ride against the repository. Any failure to
// read counts as "not pending": an unreadable ride cannot be offered.
func (o *Orchestrator) stillPending(s *session) bool {
	ctx, cancel := context.WithTimeout(context.Background(), depTimeout)
	defer cancel()
	rec, err := o.rides.Find(ctx, s.rideID)
	if err != nil {
		o.log.Errorf("re-validate ride %s: %v", s.rideID, err)
		return false
	}
	return rec.Status == model.StatusPending
}

// teardown silently destroys a session another path already resolved.
func (o *Orchestrator) teardown(s *session, reason events.EndReason) {
	if !o.removeSession(s) {
		return
	}
	o.finishSession(s, reason)
}

// removeSession marks the session done and unregisters it. It reports false
// if another path finished it first.
func (o *Orchestrator) removeSession(s *session) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	s.done = true
	s.stopTimer()
	s.currentUserID, s.currentDriverID = "", ""
	s.mu.Unlock()
	o.mu.Lock()
	delete(o.sessions, s.rideID)
	o.mu.Unlock()
	return true
}

// finishSession emits the terminal bookkeeping for a session that already
// left the registry.
func (o *Orchestrator) finishSession(s *session, reason events.EndReason) {
	elapsed := o.now().Sub(s.startedAt)
	activeSessions.Dec()
	o.publishBus(events.SessionEnded{RideID: s.rideID, Reason: reason, Elapsed: elapsed})
	s.mu.Lock()
	cycles, notified := s.cycles, len(s.notifiedOrder)
	s.mu.Unlock()
	if sr, ok := o.sink.(metrics.SessionRecorder); ok {
		if err := sr.RecordSession(metrics.SessionRecord{
			RideID:   s.rideID,
			Reason:   string(reason),
			Cycles:   cycles,
			Notified: notified,
			Elapsed:  elapsed,
			Time:     o.now(),
		}); err != nil {
			o.log.Errorf("session metrics for ride %s: %v", s.rideID, err)
		}
	}
	o.log.Infof("dispatch for ride %s ended: %s after %s", s.rideID, reason, elapsed.Round(time.Second))
}

// persistNotified mirrors the notified-id list to the ride record. Failures
// never abort the dispatch.
func (o *Orchestrator) persistNotified(rideID string, ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), depTimeout)
	defer cancel()
	if err := o.rides.UpdateNotifiedIDs(ctx, rideID, ids); err != nil {
		o.log.Warnf("persist notified ids for ride %s: %v", rideID, err)
	}
}

func (o *Orchestrator) recordRejection(driverID string) {
	ctx, cancel := context.WithTimeout(context.Background(), depTimeout)
	defer cancel()
	if err := o.penalties.RecordRejection(ctx, driverID); err != nil {
		o.log.Errorf("record rejection for driver %s: %v", driverID, err)
	}
}

func (o *Orchestrator) recordOffer(s *session, driverID string, round int, radius float64, outcome metrics.OfferOutcome, waited time.Duration) {
	if err := o.sink.RecordOffers([]metrics.OfferRecord{{
		RideID:   s.rideID,
		DriverID: driverID,
		Round:    round,
		RadiusM:  radius,
		Outcome:  outcome,
		Waited:   waited,
		Time:     o.now(),
	}}); err != nil {
		o.log.Errorf("offer metrics for ride %s: %v", s.rideID, err)
	}
}

// publishTo pushes an event on the transport, logging and swallowing errors.
func (o *Orchestrator) publishTo(channel, event string, payload any) {
	if err := o.pub.Publish(channel, event, payload); err != nil {
		o.log.Warnf("publish %s to %s: %v", event, channel, err)
	}
}

func (o *Orchestrator) publishBus(e eventbus.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}
