package dispatch

import "time"

// Config bounds a dispatch session.
type Config struct {
	// TotalBudget is the global give-up horizon measured from session start.
	TotalBudget time.Duration
	// RetryBackoff is the pause between exhausted cycles.
	RetryBackoff time.Duration
	// CandidateLimit is the per-round over-fetch: more candidates than one
	// round usually needs, so the queue can backfill after local filtering.
	CandidateLimit int
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TotalBudget <= 0 {
		c.TotalBudget = 2 * time.Minute
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 10 * time.Second
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 10
	}
}
