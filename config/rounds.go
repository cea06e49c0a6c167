package config

import (
	"sync"
	"time"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pmallet07/rideflow/core/dispatch"
	"github.com/pmallet07/rideflow/core/logger"
)

// RoundCache serves the dispatch round ladder and hot-reloads it when the
// configuration file changes on disk. In-flight sessions pick the new ladder
// up at their next round lookup; nothing restarts.
type RoundCache struct {
	path string
	log  logger.Logger

	mu     sync.RWMutex
	rounds []dispatch.RoundConfig

	provider *file.File
}

// NewRoundCache builds a cache from the already-loaded configuration and
// starts watching the file behind it.
func NewRoundCache(path string, initial []RoundEntry, log logger.Logger) (*RoundCache, error) {
	c := &RoundCache{path: path, log: log}
	c.set(initial)

	c.provider = file.Provider(path)
	err := c.provider.Watch(func(_ any, err error) {
		if err != nil {
			log.Errorf("config watch: %v", err)
			return
		}
		c.reload()
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Rounds returns the current ladder, falling back to the built-in default
// when configuration provides none.
func (c *RoundCache) Rounds() []dispatch.RoundConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.rounds) == 0 {
		return dispatch.DefaultRounds()
	}
	out := make([]dispatch.RoundConfig, len(c.rounds))
	copy(out, c.rounds)
	return out
}

// Close stops watching the file.
func (c *RoundCache) Close() error {
	if c.provider != nil {
		return c.provider.Unwatch()
	}
	return nil
}

func (c *RoundCache) set(entries []RoundEntry) {
	rounds := make([]dispatch.RoundConfig, 0, len(entries))
	for _, e := range entries {
		rounds = append(rounds, dispatch.RoundConfig{
			RadiusMeters: e.RadiusMeters,
			Interval:     time.Duration(e.IntervalMS) * time.Millisecond,
		})
	}
	c.mu.Lock()
	c.rounds = rounds
	c.mu.Unlock()
}

func (c *RoundCache) reload() {
	k := koanf.New(".")
	parser, err := parserFor(c.path)
	if err != nil {
		c.log.Errorf("config reload: %v", err)
		return
	}
	if err := k.Load(file.Provider(c.path), parser); err != nil {
		c.log.Errorf("config reload: %v", err)
		return
	}
	var entries []RoundEntry
	if err := k.UnmarshalWithConf("dispatch.rounds", &entries, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		c.log.Errorf("config reload: %v", err)
		return
	}
	var check DispatchConfig
	check.Rounds = entries
	if err := check.Validate(); err != nil {
		// Keep serving the previous ladder rather than a broken one.
		c.log.Errorf("config reload rejected: %v", err)
		return
	}
	c.set(entries)
	c.log.Infof("dispatch rounds reloaded: %d rounds", len(entries))
}
