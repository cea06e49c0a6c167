// Package ride defines the persistence boundary for ride records. The
// repository is the single source of truth for whether a ride is still
// biddable.
package ride

import (
	"context"
	"errors"
	"time"

	"github.com/pmallet07/rideflow/core/model"
)

// ErrNotFound is returned when the ride id is unknown.
var ErrNotFound = errors.New("ride not found")

// Record is the slice of the ride row the dispatch core reads back.
type Record struct {
	ID                string
	PassengerID       string
	Status            model.RideStatus
	NotifiedDriverIDs []string
}

// Repository reads ride state and persists dispatch progress.
//
// Find is blocking and error-propagating. UpdateNotifiedIDs is best-effort:
// callers log failures and keep going. MarkCancelled must be conditional on
// the ride still being pending and reports whether it changed anything.
type Repository interface {
	Find(ctx context.Context, rideID string) (Record, error)
	UpdateNotifiedIDs(ctx context.Context, rideID string, driverIDs []string) error
	MarkCancelled(ctx context.Context, rideID, reason string, at time.Time) (bool, error)
}
