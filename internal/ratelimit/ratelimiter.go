// Package ratelimit implements spec.md §4.5's per-channel token bucket.
// pkg/server configures one bucket per channel at startup; the
// Orchestrator waits on a token before dispatching a channel.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiters holds one token bucket per channel, refilled at
// rate_per_hour/3600 tokens per second up to burst=batch_size, per
// spec.md §4.5.
type RateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimiters() *RateLimiters {
	return &RateLimiters{limiters: make(map[string]*rate.Limiter)}
}

// Configure sets (or replaces) the bucket for a channel.
func (r *RateLimiters) Configure(channel string, perHour int, burst int) {
	if perHour <= 0 {
		perHour = 1
	}
	if burst <= 0 {
		burst = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[channel] = rate.NewLimiter(rate.Limit(float64(perHour)/3600.0), burst)
}

// Wait blocks until a token for channel is available, up to maxWait. It
// returns false if no token became available within maxWait (the
// caller should record the channel result as failed/rate_limited).
func (r *RateLimiters) Wait(ctx context.Context, channel string, maxWait time.Duration) bool {
	r.mu.Lock()
	lim, ok := r.limiters[channel]
	r.mu.Unlock()
	if !ok {
		return true // unconfigured channels are unlimited
	}

	waitCtx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	if err := lim.Wait(waitCtx); err != nil {
		return false
	}
	return true
}
