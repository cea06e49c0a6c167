package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmallet07/rideflow/core/model"
)

// Geo keys written by the location service.
const (
	geoKey          = "drivers:geo"
	driverKeyPrefix = "driver:"
)

// GeoMatcher implements matching.Matcher on the Redis GEO index the location
// service maintains. Ordering is VIP first, then distance; drivers inside a
// penalty silence window or failing the ride filters are dropped before the
// list is returned.
type GeoMatcher struct {
	rdb *redis.Client
	now func() time.Time
}

// NewGeoMatcher wraps the client.
func NewGeoMatcher(rdb *redis.Client) *GeoMatcher {
	return &GeoMatcher{rdb: rdb, now: time.Now}
}

type scored struct {
	cand model.Candidate
	dist float64
}

// FindCandidates returns up to limit eligible drivers around the pickup.
func (m *GeoMatcher) FindCandidates(ctx context.Context, pickup model.Point, radiusMeters float64, limit int, filters model.DriverFilters) ([]model.Candidate, error) {
	locs, err := m.rdb.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  pickup.Lng,
			Latitude:   pickup.Lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}

	now := m.now()
	eligible := make([]scored, 0, len(locs))
	for _, loc := range locs {
		fields, err := m.rdb.HGetAll(ctx, driverKeyPrefix+loc.Name).Result()
		if err != nil {
			return nil, fmt.Errorf("read driver %s: %w", loc.Name, err)
		}
		if len(fields) == 0 || fields["online"] != "1" {
			continue
		}
		if silencedAt(fields, now) {
			continue
		}
		if !matchesFilters(fields, filters) {
			continue
		}
		rating, _ := strconv.ParseFloat(fields["rating"], 64)
		eligible = append(eligible, scored{
			cand: model.Candidate{
				DriverID:    loc.Name,
				UserID:      fields["user_id"],
				DisplayName: fields["name"],
				Location:    model.Point{Lat: loc.Latitude, Lng: loc.Longitude},
				VehicleType: fields["vehicle_type"],
				IsVIP:       fields["vip"] == "1",
				Rating:      rating,
			},
			dist: loc.Dist,
		})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].cand.IsVIP != eligible[j].cand.IsVIP {
			return eligible[i].cand.IsVIP
		}
		return eligible[i].dist < eligible[j].dist
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	out := make([]model.Candidate, len(eligible))
	for i, e := range eligible {
		out[i] = e.cand
	}
	return out, nil
}

func silencedAt(fields map[string]string, now time.Time) bool {
	raw := fields["penalty_until"]
	if raw == "" {
		return false
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return time.Unix(unix, 0).After(now)
}

func matchesFilters(fields map[string]string, f model.DriverFilters) bool {
	if f.VehicleType != "" && fields["vehicle_type"] != f.VehicleType {
		return false
	}
	if f.FuelType != "" && fields["fuel_type"] != f.FuelType {
		return false
	}
	if f.PetFriendly && fields["pet_friendly"] != "1" {
		return false
	}
	if f.ExtraPassengers && fields["extra_seats"] != "1" {
		return false
	}
	return true
}
