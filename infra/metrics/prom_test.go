package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/pmallet07/rideflow/core/metrics"
)

func TestPromSinkRecordsOffers(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	require.NoError(t, err)

	err = sink.RecordOffers([]coremetrics.OfferRecord{
		{RideID: "r1", DriverID: "d1", Outcome: coremetrics.OutcomeTimedOut, Waited: 20 * time.Second},
		{RideID: "r1", DriverID: "d2", Outcome: coremetrics.OutcomeTimedOut, Waited: 20 * time.Second},
		{RideID: "r1", DriverID: "d3", Outcome: coremetrics.OutcomeAccepted, Waited: 4 * time.Second},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(sink.offers.WithLabelValues("timed_out")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.offers.WithLabelValues("accepted")))
}

func TestPromSinkRecordsSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordSession(coremetrics.SessionRecord{RideID: "r1", Reason: "accepted", Cycles: 1}))
	require.NoError(t, sink.RecordSession(coremetrics.SessionRecord{RideID: "r2", Reason: "exhausted", Cycles: 3}))

	assert.Equal(t, float64(1), testutil.ToFloat64(sink.sessions.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(sink.sessions.WithLabelValues("exhausted")))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSink(reg)
	require.NoError(t, err)
	second, err := NewPromSink(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordOffers([]coremetrics.OfferRecord{{Outcome: coremetrics.OutcomeSkipped}}))
	require.NoError(t, second.RecordOffers([]coremetrics.OfferRecord{{Outcome: coremetrics.OutcomeSkipped}}))

	assert.Equal(t, float64(2), testutil.ToFloat64(second.offers.WithLabelValues("skipped")),
		"both sinks must share one collector")
}

func TestMultiSinkFansOut(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom, err := NewPromSink(reg)
	require.NoError(t, err)

	multi := NewMultiSink(prom, coremetrics.NopSink{})
	require.NoError(t, multi.RecordOffers([]coremetrics.OfferRecord{{Outcome: coremetrics.OutcomeWithdrawn}}))
	require.NoError(t, multi.RecordSession(coremetrics.SessionRecord{Reason: "cancelled"}))

	assert.Equal(t, float64(1), testutil.ToFloat64(prom.offers.WithLabelValues("withdrawn")))
	assert.Equal(t, float64(1), testutil.ToFloat64(prom.sessions.WithLabelValues("cancelled")))
}
