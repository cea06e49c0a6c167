package metrics

import coremetrics "github.com/pmallet07/rideflow/core/metrics"

// MultiSink fans outcome records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.OutcomeSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.OutcomeSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOffers forwards to all sinks, returning the first error encountered.
func (m *MultiSink) RecordOffers(recs []coremetrics.OfferRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordOffers(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordSession forwards session records when supported by the sink.
func (m *MultiSink) RecordSession(rec coremetrics.SessionRecord) error {
	for _, s := range m.Sinks {
		if sr, ok := s.(coremetrics.SessionRecorder); ok {
			if err := sr.RecordSession(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
