// Package penalty tracks driver reliability. Chronic decliners accumulate
// escalating silence windows; cancelling an accepted ride costs an immediate
// window plus a rating deduction. VIP drivers are exempt from all of it, and
// no penalty is ever announced to the driver.
package penalty

import (
	"context"
	"time"

	"github.com/pmallet07/rideflow/core/logger"
)

const (
	// rejectionStep is how many cumulative rejections trigger one escalation.
	rejectionStep = 3
	// stepMinutes is the silence window added per escalation step.
	stepMinutes = 5
	// cancellationMinutes is the fixed window for cancelling an accepted ride.
	cancellationMinutes = 5
	// cancellationRatingDelta is deducted from the average rating per cancellation.
	cancellationRatingDelta = 0.1
)

// Tracker applies the penalty policy on top of a Store.
type Tracker struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

// NewTracker creates a Tracker. If now is nil, time.Now is used.
func NewTracker(store Store, log logger.Logger, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, log: log, now: now}
}

// RecordRejection counts one declined or timed-out offer against the driver.
// Unknown and VIP drivers are a no-op. Every third cumulative rejection earns
// a silence window of 5·(count/3) minutes.
func (t *Tracker) RecordRejection(ctx context.Context, driverID string) error {
	count, counted, err := t.store.IncrRejections(ctx, driverID)
	if err != nil {
		return err
	}
	if !counted {
		return nil
	}
	if count%rejectionStep != 0 {
		return nil
	}
	minutes := stepMinutes * (count / rejectionStep)
	until := t.now().Add(time.Duration(minutes) * time.Minute)
	if err := t.store.Silence(ctx, driverID, until, minutes); err != nil {
		return err
	}
	t.log.Infof("driver %s silenced for %dm after %d rejections", driverID, minutes, count)
	return nil
}

// RecordCancellation penalizes a driver who cancelled an already-accepted
// ride: a fixed 5-minute silence window and a 0.1 rating deduction, applied
// atomically. Unknown and VIP drivers are a no-op.
func (t *Tracker) RecordCancellation(ctx context.Context, driverID string) error {
	until := t.now().Add(cancellationMinutes * time.Minute)
	applied, err := t.store.PenalizeCancellation(ctx, driverID, until, cancellationMinutes, cancellationRatingDelta)
	if err != nil {
		return err
	}
	if applied {
		t.log.Infof("driver %s penalized for cancelling an accepted ride", driverID)
	}
	return nil
}

// ResetAllRejectionCounts zeroes every non-VIP driver's rejection counter.
// Meant to run once a day so old rejections do not haunt drivers forever.
func (t *Tracker) ResetAllRejectionCounts(ctx context.Context) error {
	n, err := t.store.ResetRejectionCounts(ctx)
	if err != nil {
		return err
	}
	t.log.Infof("reset rejection counts for %d drivers", n)
	return nil
}
