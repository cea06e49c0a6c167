// Package metrics provides sink implementations for dispatch outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/pmallet07/rideflow/core/metrics"
)

// PromSink records offer and session outcomes in Prometheus metrics.
type PromSink struct {
	offers   *prometheus.CounterVec
	waited   *prometheus.HistogramVec
	sessions *prometheus.CounterVec
}

// NewPromSink registers the sink's collectors on the provided registerer.
// If reg is nil, the default registerer is used. Already-registered
// collectors are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_offer_outcomes_total",
		Help: "Resolved driver offers by outcome",
	}, []string{"outcome"})
	waited := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ride_offer_wait_seconds",
		Help:    "Time an offer sat with a driver before resolving",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_sessions_total",
		Help: "Finished dispatch sessions by end reason",
	}, []string{"reason"})

	for i, c := range []prometheus.Collector{offers, waited, sessions} {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch i {
			case 0:
				offers = are.ExistingCollector.(*prometheus.CounterVec)
			case 1:
				waited = are.ExistingCollector.(*prometheus.HistogramVec)
			case 2:
				sessions = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}
	return &PromSink{offers: offers, waited: waited, sessions: sessions}, nil
}

// RecordOffers increments the outcome counter per record.
func (s *PromSink) RecordOffers(recs []coremetrics.OfferRecord) error {
	for _, r := range recs {
		s.offers.WithLabelValues(string(r.Outcome)).Inc()
		s.waited.WithLabelValues(string(r.Outcome)).Observe(r.Waited.Seconds())
	}
	return nil
}

// RecordSession counts the finished session by reason.
func (s *PromSink) RecordSession(rec coremetrics.SessionRecord) error {
	s.sessions.WithLabelValues(rec.Reason).Inc()
	return nil
}
