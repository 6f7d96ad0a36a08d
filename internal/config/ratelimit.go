package config

import "time"

// RateLimitConfig sizes one fixed-window limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	Sweep  time.Duration // only used by the in-process limiter
}

// loadRateLimit reads <PREFIX>_RATE_LIMIT_MAX, _WINDOW and _SWEEP.
func loadRateLimit(e *env, prefix string, max int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Max:    e.num(prefix+"_RATE_LIMIT_MAX", max),
		Window: e.dur(prefix+"_RATE_LIMIT_WINDOW", window),
		Sweep:  e.dur(prefix+"_RATE_LIMIT_SWEEP", time.Minute),
	}
}
