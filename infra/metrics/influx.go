package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/pmallet07/rideflow/config"
	coremetrics "github.com/pmallet07/rideflow/core/metrics"
	"github.com/pmallet07/rideflow/infra/logger"
)

// InfluxSink writes dispatch outcomes to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// when the health check fails, so a missing analytics backend never blocks
// dispatching.
func NewInfluxSinkWithFallback(cfg config.MetricsConfig) coremetrics.OutcomeSink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordOffers writes each resolved offer as a point.
func (s *InfluxSink) RecordOffers(recs []coremetrics.OfferRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("ride_offer").
			AddTag("outcome", string(r.Outcome)).
			AddField("ride_id", r.RideID).
			AddField("driver_id", r.DriverID).
			AddField("round", r.Round).
			AddField("radius_m", r.RadiusM).
			AddField("waited_ms", r.Waited.Milliseconds()).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordSession writes the finished session as a point.
func (s *InfluxSink) RecordSession(rec coremetrics.SessionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_session").
		AddTag("reason", rec.Reason).
		AddField("ride_id", rec.RideID).
		AddField("cycles", rec.Cycles).
		AddField("notified", rec.Notified).
		AddField("elapsed_ms", rec.Elapsed.Milliseconds()).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
