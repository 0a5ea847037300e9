// Package ratelimiter throttles outbound requests using the token bucket
// algorithm. The WebHDFS name node is a shared resource on PAI clusters;
// interactive clients that hammer LISTSTATUS can degrade it for everyone, so
// the HTTP client takes a limiter in front of every request.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the conventions used here:
// a zero sustained rate means unlimited, and callers wait rather than get
// rejected. All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter with the given sustained rate and burst capacity.
//
// Parameters:
//   - requestsPerSecond: maximum sustained rate (0 disables limiting)
//   - burst: bucket capacity; bumped up to requestsPerSecond if smaller,
//     since a bucket smaller than the refill rate cannot sustain it
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < requestsPerSecond {
		burst = requestsPerSecond
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Wait blocks until a token is available or the context is cancelled.
//
// Returns nil once a token was acquired, or the context's error.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now, consuming a token
// if so. Fast path for callers that reject instead of waiting.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetLimit updates the sustained rate. Zero disables limiting.
func (r *RateLimiter) SetLimit(requestsPerSecond uint) {
	if requestsPerSecond == 0 {
		r.limiter.SetLimit(rate.Inf)
		return
	}
	r.limiter.SetLimit(rate.Limit(requestsPerSecond))
	if uint(r.limiter.Burst()) < requestsPerSecond {
		r.limiter.SetBurst(int(requestsPerSecond))
	}
}

// Tokens returns the number of currently available tokens. Monitoring only;
// the value can be stale as soon as it is returned.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
