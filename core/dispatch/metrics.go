package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offersSent       prometheus.Counter
	offerTimeouts    prometheus.Counter
	offerSkips       prometheus.Counter
	activeSessions   prometheus.Gauge
	cycleResets      prometheus.Counter
	matchingFailures prometheus.Counter
	ridesGivenUp     prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Gauge, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	sent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_sent_total",
		Help: "Number of ride offers pushed to drivers",
	})
	timeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offer_timeouts_total",
		Help: "Number of driver offers that expired unanswered",
	})
	skips := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offer_skips_total",
		Help: "Number of offers explicitly declined by the awaited driver",
	})
	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_active_sessions",
		Help: "Number of rides currently running a dispatch session",
	})
	resets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_cycle_resets_total",
		Help: "Number of exhausted cycles restarted at round zero",
	})
	matchFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_matching_failures_total",
		Help: "Number of candidate queries that returned an error",
	})
	givenUp := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_rides_given_up_total",
		Help: "Number of rides cancelled after exhausting the time budget",
	})
	return sent, timeouts, skips, active, resets, matchFail, givenUp
}

func init() {
	offersSent, offerTimeouts, offerSkips, activeSessions, cycleResets, matchingFailures, ridesGivenUp = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offersSent, offerTimeouts, offerSkips, activeSessions, cycleResets, matchingFailures, ridesGivenUp)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offersSent, offerTimeouts, offerSkips, activeSessions, cycleResets, matchingFailures, ridesGivenUp = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
