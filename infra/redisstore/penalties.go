// Package redisstore keeps driver penalty counters in Redis. Counter updates
// run as Lua scripts so a timeout and an explicit skip racing on the same
// driver can never double-apply or lose a write.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmallet07/rideflow/core/penalty"
)

// Penalty fields live on the same driver hash the location service maintains,
// so the matcher enforces silence windows with no extra lookup.
const keyPrefix = "driver:"

// Script results for guard conditions.
const (
	resUnknown = -1
	resVIP     = -2
)

var incrRejectionsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'vip') == '1' then return -2 end
return redis.call('HINCRBY', KEYS[1], 'rejections', 1)
`)

var cancellationScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'vip') == '1' then return -2 end
local rating = tonumber(redis.call('HGET', KEYS[1], 'rating') or '0')
rating = rating - tonumber(ARGV[3])
if rating < 0 then rating = 0 end
rating = math.floor(rating * 10 + 0.5) / 10
redis.call('HSET', KEYS[1], 'rating', tostring(rating), 'penalty_until', ARGV[1], 'penalty_minutes', ARGV[2])
return 1
`)

// PenaltyStore implements penalty.Store on a Redis client.
type PenaltyStore struct {
	rdb *redis.Client
}

// New creates a client from connection parameters.
func New(addr, password string, db int) *PenaltyStore {
	return &PenaltyStore{rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

// NewWithClient wraps an existing client, for tests.
func NewWithClient(rdb *redis.Client) *PenaltyStore {
	return &PenaltyStore{rdb: rdb}
}

// Close releases the underlying client.
func (s *PenaltyStore) Close() error { return s.rdb.Close() }

// Client exposes the underlying Redis client so other adapters can share the
// connection.
func (s *PenaltyStore) Client() *redis.Client { return s.rdb }

func key(driverID string) string { return keyPrefix + driverID }

// Seed writes a full driver record, used by provisioning and tests.
func (s *PenaltyStore) Seed(ctx context.Context, st penalty.State) error {
	vip := "0"
	if st.IsVIP {
		vip = "1"
	}
	fields := map[string]any{
		"rejections":      st.RejectionCount,
		"vip":             vip,
		"penalty_minutes": st.LastPenaltyMinutes,
		"rating":          strconv.FormatFloat(st.AverageRating, 'f', 1, 64),
	}
	if st.PenaltyUntil != nil {
		fields["penalty_until"] = st.PenaltyUntil.Unix()
	}
	return s.rdb.HSet(ctx, key(st.DriverID), fields).Err()
}

func (s *PenaltyStore) Get(ctx context.Context, driverID string) (penalty.State, error) {
	vals, err := s.rdb.HGetAll(ctx, key(driverID)).Result()
	if err != nil {
		return penalty.State{}, err
	}
	if len(vals) == 0 {
		return penalty.State{}, penalty.ErrUnknownDriver
	}
	st := penalty.State{DriverID: driverID}
	st.RejectionCount, _ = strconv.Atoi(vals["rejections"])
	st.IsVIP = vals["vip"] == "1"
	st.LastPenaltyMinutes, _ = strconv.Atoi(vals["penalty_minutes"])
	st.AverageRating, _ = strconv.ParseFloat(vals["rating"], 64)
	if raw, ok := vals["penalty_until"]; ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			st.PenaltyUntil = &t
		}
	}
	return st, nil
}

func (s *PenaltyStore) IncrRejections(ctx context.Context, driverID string) (int, bool, error) {
	res, err := incrRejectionsScript.Run(ctx, s.rdb, []string{key(driverID)}).Int()
	if err != nil {
		return 0, false, fmt.Errorf("incr rejections for %s: %w", driverID, err)
	}
	if res == resUnknown || res == resVIP {
		return 0, false, nil
	}
	return res, true, nil
}

func (s *PenaltyStore) Silence(ctx context.Context, driverID string, until time.Time, minutes int) error {
	return s.rdb.HSet(ctx, key(driverID), map[string]any{
		"penalty_until":   until.Unix(),
		"penalty_minutes": minutes,
	}).Err()
}

func (s *PenaltyStore) PenalizeCancellation(ctx context.Context, driverID string, until time.Time, minutes int, ratingDelta float64) (bool, error) {
	res, err := cancellationScript.Run(ctx, s.rdb, []string{key(driverID)},
		until.Unix(), minutes, strconv.FormatFloat(ratingDelta, 'f', -1, 64)).Int()
	if err != nil {
		return false, fmt.Errorf("cancellation penalty for %s: %w", driverID, err)
	}
	return res == 1, nil
}

// ResetRejectionCounts walks all penalty records and zeroes non-VIP counters.
func (s *PenaltyStore) ResetRejectionCounts(ctx context.Context) (int, error) {
	var cursor uint64
	reset := 0
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", 200).Result()
		if err != nil {
			return reset, err
		}
		for _, k := range keys {
			vals, err := s.rdb.HMGet(ctx, k, "vip", "rejections").Result()
			if err != nil {
				return reset, err
			}
			vip, _ := vals[0].(string)
			count, _ := vals[1].(string)
			if vip == "1" || count == "" || count == "0" {
				continue
			}
			if err := s.rdb.HSet(ctx, k, "rejections", 0).Err(); err != nil {
				return reset, err
			}
			reset++
		}
		cursor = next
		if cursor == 0 {
			return reset, nil
		}
	}
}
