package session

import (
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the wait before ready probe attempt (1-based).
// With the default multiplier of 1 every probe waits InitialDelay. Jitter
// spreads the delay over [0.75, 1.25) of its value and needs rng.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	growth := cfg.Multiplier
	if growth < 1.0 {
		growth = 1.0
	}
	delay := float64(cfg.InitialDelay)
	if growth > 1.0 {
		delay *= math.Pow(growth, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 {
		delay = math.Min(delay, float64(cfg.MaxDelay))
	}
	if cfg.Jitter && rng != nil {
		delay *= 0.75 + rng.Float64()/2
	}
	return time.Duration(delay)
}
