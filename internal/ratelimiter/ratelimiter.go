// Package ratelimiter bounds how fast new storage and tracker connections
// are dialed.
//
// When a pool re-warms after an endpoint comes back, every waiting caller
// would otherwise dial at once and hammer the recovering server. The
// limiter spreads those dials out using a token bucket
// (golang.org/x/time/rate): tokens refill at the sustained dial rate and
// the burst allows a short spike after idle periods.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// DialLimiter rate-limits connection establishment. The zero rate means
// unlimited; Wait then returns immediately.
//
// All methods are safe for concurrent use.
type DialLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing dialsPerSecond sustained dials with the
// given burst. A zero dialsPerSecond disables limiting.
func New(dialsPerSecond, burst uint) *DialLimiter {
	if dialsPerSecond == 0 {
		return &DialLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = dialsPerSecond
	}
	return &DialLimiter{limiter: rate.NewLimiter(rate.Limit(dialsPerSecond), int(burst))}
}

// Wait blocks until a dial token is available or the context is done.
func (l *DialLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a dial may proceed right now, without waiting.
func (l *DialLimiter) Allow() bool {
	return l.limiter.Allow()
}
