// Package server implements per-connection throttling that protects the
// broadcast fan-out from a single noisy client.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter admits up to burst payloads at once and refills burst tokens
// every interval. A nil *rateLimiter admits everything.
type rateLimiter struct {
	limiter *rate.Limiter
	cfg     RateLimitConfig
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		return nil
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}

	every := rate.Every(cfg.RefillInterval / time.Duration(cfg.Burst))
	return &rateLimiter{
		limiter: rate.NewLimiter(every, cfg.Burst),
		cfg:     cfg,
	}
}

func (rl *rateLimiter) allow() bool {
	return rl.allowAt(time.Now())
}

func (rl *rateLimiter) allowAt(now time.Time) bool {
	if rl == nil {
		return true
	}
	return rl.limiter.AllowN(now, 1)
}
