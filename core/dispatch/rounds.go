package dispatch

import "time"

// RoundConfig is one rung of the escalation ladder: how far to search and how
// long each driver of that round may sit on the offer.
type RoundConfig struct {
	RadiusMeters float64
	Interval     time.Duration
}

// RoundSource returns the current round ladder. Implementations may hot-reload
// from configuration; the orchestrator re-reads it at every round start, so a
// changed ladder applies to in-flight sessions without restarting them.
type RoundSource interface {
	Rounds() []RoundConfig
}

// StaticRounds is a fixed ladder, mostly for tests and defaults.
type StaticRounds []RoundConfig

// Rounds implements RoundSource.
func (s StaticRounds) Rounds() []RoundConfig { return s }

// DefaultRounds is the ladder used when configuration provides none.
func DefaultRounds() StaticRounds {
	return StaticRounds{
		{RadiusMeters: 800, Interval: 20 * time.Second},
		{RadiusMeters: 1500, Interval: 20 * time.Second},
		{RadiusMeters: 3000, Interval: 25 * time.Second},
	}
}
