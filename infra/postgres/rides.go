// Package postgres implements the ride repository on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmallet07/rideflow/core/model"
	"github.com/pmallet07/rideflow/core/ride"
)

// RideStore implements ride.Repository backed by the rides table.
type RideStore struct {
	db *pgxpool.Pool
}

// NewPool creates a pgx pool for the given DSN.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	return pool, nil
}

// NewRideStore wraps the pool.
func NewRideStore(db *pgxpool.Pool) *RideStore {
	return &RideStore{db: db}
}

// Find reads the dispatch-relevant slice of the ride row.
func (s *RideStore) Find(ctx context.Context, rideID string) (ride.Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, passenger_id, status, COALESCE(notified_driver_ids, '{}')
		FROM rides
		WHERE id = $1`, rideID,
	)
	var rec ride.Record
	var status string
	if err := row.Scan(&rec.ID, &rec.PassengerID, &status, &rec.NotifiedDriverIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ride.Record{}, ride.ErrNotFound
		}
		return ride.Record{}, fmt.Errorf("find ride %s: %w", rideID, err)
	}
	rec.Status = model.RideStatus(status)
	return rec, nil
}

// UpdateNotifiedIDs overwrites the notified-driver list. The list only ever
// grows within a session, so a lost write is repaired by the next one.
func (s *RideStore) UpdateNotifiedIDs(ctx context.Context, rideID string, driverIDs []string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE rides SET notified_driver_ids = $2 WHERE id = $1`,
		rideID, driverIDs,
	)
	if err != nil {
		return fmt.Errorf("update notified ids for ride %s: %w", rideID, err)
	}
	return nil
}

// MarkCancelled cancels the ride only if it is still pending and reports
// whether this call was the one that flipped it.
func (s *RideStore) MarkCancelled(ctx context.Context, rideID, reason string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE rides
		SET status = $2, cancellation_reason = $3, cancelled_at = $4
		WHERE id = $1 AND status = $5`,
		rideID, string(model.StatusCancelled), reason, at, string(model.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("mark ride %s cancelled: %w", rideID, err)
	}
	return tag.RowsAffected() > 0, nil
}
