// Package events declares the lifecycle events the dispatch orchestrator
// publishes on the internal bus.
package events

import "time"

// OfferSent is published after an offer was pushed to a driver and its
// response timer armed.
type OfferSent struct {
	RideID     string
	DriverID   string
	UserID     string
	Round      int
	RadiusM    float64
	Window     time.Duration
	NotifiedAt time.Time
}

// OfferTimedOut is published when the awaited driver let the window lapse.
type OfferTimedOut struct {
	RideID   string
	DriverID string
	UserID   string
	Round    int
}

// DriverSkipped is published when a driver explicitly declined.
type DriverSkipped struct {
	RideID  string
	UserID  string
	Current bool // whether the skip interrupted the in-flight offer
}

// TimerReset is published when the awaited driver acknowledged the offer and
// had its window restarted.
type TimerReset struct {
	RideID string
	UserID string
}

// CycleReset is published when all rounds were exhausted and the session
// waits out the backoff before restarting at round zero.
type CycleReset struct {
	RideID  string
	Elapsed time.Duration
}

// SessionEnded is published exactly once when a session is torn down.
type SessionEnded struct {
	RideID  string
	Reason  EndReason
	Elapsed time.Duration
}

// EndReason explains why a dispatch session ended.
type EndReason string

const (
	EndAccepted   EndReason = "accepted"
	EndCancelled  EndReason = "cancelled"
	EndNotPending EndReason = "not_pending"
	EndExhausted  EndReason = "exhausted"
)
