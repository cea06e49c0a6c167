package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full service configuration.
type Config struct {
	MQTT     MQTTConfig     `json:"mqtt"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Dispatch DispatchConfig `json:"dispatch"`
	Metrics  MetricsConfig  `json:"metrics"`
	Jobs     JobsConfig     `json:"jobs"`
}

// MQTTConfig configures the real-time transport.
type MQTTConfig struct {
	Broker        string `json:"broker"`
	ClientID      string `json:"client_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	TopicPrefix   string `json:"topic_prefix"`
	ResponseTopic string `json:"response_topic"`
	QoS           byte   `json:"qos"`
	MaxRetries    int    `json:"max_retries"`
	BackoffMS     int    `json:"backoff_ms"`
}

// SetDefaults applies sane defaults.
func (c *MQTTConfig) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "rideflow-dispatch"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "rideflow"
	}
	if c.ResponseTopic == "" {
		c.ResponseTopic = "rideflow/dispatch/response"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields.
func (c MQTTConfig) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker is required")
	}
	return nil
}

// PostgresConfig configures the ride repository.
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// Validate checks mandatory fields.
func (c PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}
	return nil
}

// RedisConfig configures the penalty store.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SetDefaults applies sane defaults.
func (c *RedisConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// RoundEntry is one configured dispatch round.
type RoundEntry struct {
	RadiusMeters float64 `json:"radius_m"`
	IntervalMS   int     `json:"interval_ms"`
}

// DispatchConfig configures the orchestrator.
type DispatchConfig struct {
	Rounds              []RoundEntry `json:"rounds"`
	TotalBudgetSeconds  int          `json:"total_budget_seconds"`
	RetryBackoffSeconds int          `json:"retry_backoff_seconds"`
	CandidateLimit      int          `json:"candidate_limit"`
}

// Validate checks the round ladder is usable.
func (c DispatchConfig) Validate() error {
	for i, r := range c.Rounds {
		if r.RadiusMeters <= 0 {
			return fmt.Errorf("dispatch round %d: radius must be positive", i)
		}
		if r.IntervalMS <= 0 {
			return fmt.Errorf("dispatch round %d: interval must be positive", i)
		}
	}
	return nil
}

// MetricsConfig configures observability sinks.
type MetricsConfig struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9402"
	}
}

// JobsConfig configures recurring maintenance jobs.
type JobsConfig struct {
	// PenaltyResetAt is the local wall-clock time (HH:MM) of the daily
	// rejection-count reset.
	PenaltyResetAt string `json:"penalty_reset_at"`
}

// SetDefaults applies sane defaults.
func (c *JobsConfig) SetDefaults() {
	if c.PenaltyResetAt == "" {
		c.PenaltyResetAt = "04:00"
	}
}

// Validate checks the reset time parses.
func (c JobsConfig) Validate() error {
	if _, err := time.Parse("15:04", c.PenaltyResetAt); err != nil {
		return fmt.Errorf("jobs.penalty_reset_at: %w", err)
	}
	return nil
}

// Load reads the configuration file (JSON or YAML by extension) and applies
// RIDEFLOW_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("RIDEFLOW_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "rideflow_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Redis.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Jobs.SetDefaults()
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Postgres.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Jobs.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}
