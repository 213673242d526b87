// Package server builds the per-connection token bucket that protects the
// hub from clients flooding events.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter allows bursts of cfg.Burst events and refills the whole
// bucket once per cfg.RefillInterval.
func newRateLimiter(cfg RateLimitConfig) *rate.Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	return rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst)
}
