package session

import "time"

// BackoffConfig defines probe spacing.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines handshake defaults.
type Config struct {
	// MaxAttempts bounds the ready probes of one handshake cycle.
	MaxAttempts int
	Backoff     BackoffConfig
}

// DefaultConfig probes every 100ms, at most 20 times.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 20,
		Backoff: BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   1.0,
		},
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier < 1.0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	return c
}

// Timeout is the longest a cycle can wait for a ready reply.
func (c Config) Timeout() time.Duration {
	c = c.WithDefaults()
	var total time.Duration
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		total += NextBackoffDelay(c.Backoff, attempt, nil)
	}
	return total
}
