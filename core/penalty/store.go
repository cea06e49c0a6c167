package penalty

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownDriver is returned when no penalty record exists for the driver.
var ErrUnknownDriver = errors.New("penalty: unknown driver")

// State is the durable per-driver reliability record.
type State struct {
	DriverID           string
	RejectionCount     int
	IsVIP              bool
	PenaltyUntil       *time.Time
	LastPenaltyMinutes int
	AverageRating      float64
}

// Store persists driver penalty state. Counter updates must be atomic: a
// timeout and an explicit skip racing on the same driver may both call in,
// and the loser of the race must observe the winner's write.
type Store interface {
	// Get returns the driver's current state, or ErrUnknownDriver.
	Get(ctx context.Context, driverID string) (State, error)
	// IncrRejections bumps the rejection counter and returns the new value.
	// counted is false when the driver is unknown or VIP; nothing is
	// written in that case.
	IncrRejections(ctx context.Context, driverID string) (count int, counted bool, err error)
	// Silence records an absolute penalty window for the driver.
	Silence(ctx context.Context, driverID string, until time.Time, minutes int) error
	// PenalizeCancellation applies, in one atomic step, the cancellation
	// window and a rating deduction floored at zero and rounded to one
	// decimal. applied is false for unknown or VIP drivers.
	PenalizeCancellation(ctx context.Context, driverID string, until time.Time, minutes int, ratingDelta float64) (applied bool, err error)
	// ResetRejectionCounts zeroes the counter of every non-VIP driver with
	// a nonzero count and returns how many were reset.
	ResetRejectionCounts(ctx context.Context) (int, error)
}
