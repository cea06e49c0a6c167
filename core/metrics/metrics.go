// Package metrics defines the sink interfaces used to record dispatch
// outcomes for observability backends.
package metrics

import "time"

// OfferOutcome labels how a single driver offer resolved.
type OfferOutcome string

const (
	OutcomeAccepted  OfferOutcome = "accepted"
	OutcomeTimedOut  OfferOutcome = "timed_out"
	OutcomeSkipped   OfferOutcome = "skipped"
	OutcomeWithdrawn OfferOutcome = "withdrawn"
)

// OfferRecord is one per-driver offer event to be recorded.
type OfferRecord struct {
	RideID   string
	DriverID string
	Round    int
	RadiusM  float64
	Outcome  OfferOutcome
	Waited   time.Duration
	Time     time.Time
}

// OutcomeSink records resolved offers. Implementations must tolerate many
// concurrent callers; errors are logged and swallowed by the orchestrator.
type OutcomeSink interface {
	RecordOffers(records []OfferRecord) error
}

// SessionRecord summarizes a finished dispatch session.
type SessionRecord struct {
	RideID   string
	Reason   string
	Cycles   int
	Notified int
	Elapsed  time.Duration
	Time     time.Time
}

// SessionRecorder is implemented by sinks that also track whole sessions.
type SessionRecorder interface {
	RecordSession(rec SessionRecord) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordOffers([]OfferRecord) error  { return nil }
func (NopSink) RecordSession(SessionRecord) error { return nil }
