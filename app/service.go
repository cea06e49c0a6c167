// Package app wires configuration, infrastructure and the dispatch core into
// a runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pmallet07/rideflow/config"
	"github.com/pmallet07/rideflow/core/dispatch"
	coremetrics "github.com/pmallet07/rideflow/core/metrics"
	"github.com/pmallet07/rideflow/core/penalty"
	"github.com/pmallet07/rideflow/infra/logger"
	"github.com/pmallet07/rideflow/infra/metrics"
	"github.com/pmallet07/rideflow/infra/mqtt"
	"github.com/pmallet07/rideflow/infra/postgres"
	"github.com/pmallet07/rideflow/infra/redisstore"
	"github.com/pmallet07/rideflow/internal/eventbus"
	"github.com/pmallet07/rideflow/jobs/penaltyreset"
)

// Service owns every long-lived component of the dispatch process.
type Service struct {
	Orchestrator *dispatch.Orchestrator
	Tracker      *penalty.Tracker

	cfg       *config.Config
	publisher *mqtt.PahoPublisher
	rounds    *config.RoundCache
	resetJob  *penaltyreset.Runner
	bus       *eventbus.Bus
	log       logger.Logger
	closers   []func() error
}

// New composes a Service from the configuration. cfgPath is needed again for
// the hot-reloading round cache.
func New(cfg *config.Config, cfgPath string) (*Service, error) {
	log := logger.New("service")

	pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
	cancel()
	if err != nil {
		pub.Disconnect()
		return nil, err
	}
	rides := postgres.NewRideStore(pool)

	penaltyStore := redisstore.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	tracker := penalty.NewTracker(penaltyStore, logger.New("penalty"), nil)
	matcher := redisstore.NewGeoMatcher(penaltyStore.Client())

	rounds, err := config.NewRoundCache(cfgPath, cfg.Dispatch.Rounds, logger.New("rounds"))
	if err != nil {
		pub.Disconnect()
		pool.Close()
		return nil, fmt.Errorf("round cache: %w", err)
	}

	var sinks []coremetrics.OutcomeSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.OutcomeSink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	orch, err := dispatch.NewOrchestrator(
		rides,
		matcher,
		pub,
		tracker,
		rounds,
		dispatch.Config{
			TotalBudget:    time.Duration(cfg.Dispatch.TotalBudgetSeconds) * time.Second,
			RetryBackoff:   time.Duration(cfg.Dispatch.RetryBackoffSeconds) * time.Second,
			CandidateLimit: cfg.Dispatch.CandidateLimit,
		},
		sink,
		bus,
		logger.New("dispatch"),
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	svc := &Service{
		Orchestrator: orch,
		Tracker:      tracker,
		cfg:          cfg,
		publisher:    pub,
		rounds:       rounds,
		resetJob:     penaltyreset.New(tracker, cfg.Jobs.PenaltyResetAt, logger.New("penalty-reset")),
		bus:          bus,
		log:          log,
	}
	svc.closers = append(svc.closers,
		rounds.Close,
		penaltyStore.Close,
		func() error { pool.Close(); return nil },
		func() error { pub.Disconnect(); return nil },
	)

	if err := pub.SubscribeResponses(cfg.MQTT.ResponseTopic, mqtt.ResponseHandler(orch, tracker, logger.New("responses"))); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("subscribe responses: %w", err)
	}
	return svc, nil
}

// Run blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.resetJob.Run(ctx)
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.log.Infof("dispatch service running")
	<-ctx.Done()
	return nil
}

// Close releases every resource held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
