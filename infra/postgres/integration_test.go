package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pmallet07/rideflow/core/model"
	"github.com/pmallet07/rideflow/core/ride"
)

const ridesDDL = `
CREATE TABLE rides (
	id                  TEXT PRIMARY KEY,
	passenger_id        TEXT NOT NULL,
	status              TEXT NOT NULL,
	notified_driver_ids TEXT[],
	cancellation_reason TEXT,
	cancelled_at        TIMESTAMPTZ
)`

// startPostgres spins up a real Postgres server with the rides table applied.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "rideflow",
			"POSTGRES_PASSWORD": "rideflow",
			"POSTGRES_DB":       "rideflow",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Fatalf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://rideflow:rideflow@%s:%s/rideflow", host, port.Port())

	var pool *pgxpool.Pool
	var connErr error
	for i := 0; i < 10; i++ {
		pool, connErr = NewPool(ctx, dsn)
		if connErr == nil {
			if connErr = pool.Ping(ctx); connErr == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	if connErr != nil {
		t.Fatalf("failed to connect: %v", connErr)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, ridesDDL); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return pool
}

func insertRide(t *testing.T, pool *pgxpool.Pool, id string, status model.RideStatus) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO rides (id, passenger_id, status) VALUES ($1, 'p1', $2)`, id, string(status))
	if err != nil {
		t.Fatalf("insert ride %s: %v", id, err)
	}
}

func TestIntegrationFind(t *testing.T) {
	pool := startPostgres(t)
	store := NewRideStore(pool)
	ctx := context.Background()
	insertRide(t, pool, "r1", model.StatusPending)

	rec, err := store.Find(ctx, "r1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec.ID != "r1" || rec.PassengerID != "p1" || rec.Status != model.StatusPending {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.NotifiedDriverIDs) != 0 {
		t.Fatalf("NULL notified ids must read as an empty list, got %#v", rec.NotifiedDriverIDs)
	}

	if _, err := store.Find(ctx, "missing"); !errors.Is(err, ride.ErrNotFound) {
		t.Fatalf("find missing: err = %v, want ErrNotFound", err)
	}
}

func TestIntegrationUpdateNotifiedIDs(t *testing.T) {
	pool := startPostgres(t)
	store := NewRideStore(pool)
	ctx := context.Background()
	insertRide(t, pool, "r1", model.StatusPending)

	if err := store.UpdateNotifiedIDs(ctx, "r1", []string{"d1"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdateNotifiedIDs(ctx, "r1", []string{"d1", "d2"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, err := store.Find(ctx, "r1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rec.NotifiedDriverIDs) != 2 || rec.NotifiedDriverIDs[0] != "d1" || rec.NotifiedDriverIDs[1] != "d2" {
		t.Fatalf("notified ids = %v, want [d1 d2]", rec.NotifiedDriverIDs)
	}
}

func TestIntegrationMarkCancelledIsConditional(t *testing.T) {
	pool := startPostgres(t)
	store := NewRideStore(pool)
	ctx := context.Background()
	insertRide(t, pool, "r1", model.StatusPending)
	insertRide(t, pool, "r2", model.StatusAccepted)
	at := time.Now().Truncate(time.Second)

	cancelled, err := store.MarkCancelled(ctx, "r1", "no_driver_found", at)
	if err != nil || !cancelled {
		t.Fatalf("first cancel: cancelled=%v err=%v", cancelled, err)
	}
	// The row already flipped; only one caller may win.
	cancelled, err = store.MarkCancelled(ctx, "r1", "no_driver_found", at)
	if err != nil || cancelled {
		t.Fatalf("second cancel: cancelled=%v err=%v", cancelled, err)
	}
	// A ride another path resolved is left alone.
	cancelled, err = store.MarkCancelled(ctx, "r2", "no_driver_found", at)
	if err != nil || cancelled {
		t.Fatalf("cancel accepted ride: cancelled=%v err=%v", cancelled, err)
	}

	var status, reason string
	var cancelledAt time.Time
	err = pool.QueryRow(ctx,
		`SELECT status, cancellation_reason, cancelled_at FROM rides WHERE id = 'r1'`,
	).Scan(&status, &reason, &cancelledAt)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if status != string(model.StatusCancelled) || reason != "no_driver_found" || !cancelledAt.Equal(at) {
		t.Fatalf("row = %s/%s/%s, want cancelled/no_driver_found/%s", status, reason, cancelledAt, at)
	}

	rec, err := store.Find(ctx, "r2")
	if err != nil || rec.Status != model.StatusAccepted {
		t.Fatalf("accepted ride mutated: %+v err=%v", rec, err)
	}
}
