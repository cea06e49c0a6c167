// Package penaltyreset runs the daily driver rejection-count reset.
package penaltyreset

import (
	"context"
	"time"

	"github.com/pmallet07/rideflow/core/logger"
	"github.com/pmallet07/rideflow/core/penalty"
)

// Runner triggers the reset at a fixed local wall-clock time every day.
type Runner struct {
	tracker *penalty.Tracker
	at      string
	log     logger.Logger
	now     func() time.Time
}

// New creates a Runner. at is "HH:MM" local time.
func New(tracker *penalty.Tracker, at string, log logger.Logger) *Runner {
	return &Runner{tracker: tracker, at: at, log: log, now: time.Now}
}

// Run blocks until the context is canceled, firing once per day.
func (r *Runner) Run(ctx context.Context) {
	for {
		wait := time.Until(r.nextRun())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Errorf("penalty reset: %v", err)
			}
		}
	}
}

// RunOnce performs a single reset immediately.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.tracker.ResetAllRejectionCounts(ctx)
}

func (r *Runner) nextRun() time.Time {
	at, err := time.Parse("15:04", r.at)
	if err != nil {
		// Validated at config load; fall back to a day from now anyway.
		return r.now().Add(24 * time.Hour)
	}
	now := r.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
