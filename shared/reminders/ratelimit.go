package reminders

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	// Rate is the number of sends allowed per second.
	Rate float64
	// Burst is the maximum number of sends at once.
	Burst int
	// JitterMin and JitterMax bound the random delay added before each
	// send, in milliseconds.
	JitterMin int
	JitterMax int
}

// DefaultRateLimiterConfig stays under Telegram's 30 messages per second.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:      20.0,
		Burst:     30,
		JitterMin: 50,
		JitterMax: 150,
	}
}

// RateLimiter is a token bucket with jitter.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter *rate.Limiter
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	limit := rate.Limit(config.Rate)
	if config.Rate <= 0 {
		limit = rate.Inf
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		config:  config,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until a send is allowed or ctx is done. It reports whether
// it had to wait for a token.
func (r *RateLimiter) Wait(ctx context.Context) (bool, error) {
	if jitter := r.jitter(); jitter > 0 {
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if r.limiter.Allow() {
		return false, nil
	}
	return true, r.limiter.Wait(ctx)
}

func (r *RateLimiter) jitter() time.Duration {
	if r.config.JitterMax <= r.config.JitterMin {
		return time.Duration(r.config.JitterMin) * time.Millisecond
	}
	ms := r.config.JitterMin + rand.IntN(r.config.JitterMax-r.config.JitterMin)
	return time.Duration(ms) * time.Millisecond
}

// TryAcquire takes a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.Allow()
}

// Available returns the current number of tokens.
func (r *RateLimiter) Available() float64 {
	return r.limiter.Tokens()
}
