// Package matching defines the boundary to the geospatial driver search. The
// dispatch core only consumes the ordered candidate list; ranking, silence
// windows and geo indexing are owned by the implementation behind it.
package matching

import (
	"context"

	"github.com/pmallet07/rideflow/core/model"
)

// Matcher returns priority-ordered, pre-filtered candidate drivers around a
// pickup point. An error is distinct from an empty result and callers must not
// collapse one into the other.
type Matcher interface {
	FindCandidates(ctx context.Context, pickup model.Point, radiusMeters float64, limit int, filters model.DriverFilters) ([]model.Candidate, error)
}
