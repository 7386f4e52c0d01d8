package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out Telegram API requests and honours FLOOD_WAIT pauses.
type RateLimiter struct {
	limiter *rate.Limiter

	// set after a FLOOD_WAIT error
	floodWaitUntil time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a limiter allowing rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter returns a limiter with conservative settings.
// History paging and downloads share it, 2 rps keeps long scans clear of FLOOD_WAIT.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(2.0, 1)
}

// Wait blocks until the flood pause has passed and the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if d := r.FloodWaitRemaining(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetFloodWait pauses all requests for the given number of seconds.
// A shorter wait never cuts an active longer one.
func (r *RateLimiter) SetFloodWait(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := time.Now().Add(time.Duration(seconds) * time.Second)
	if until.After(r.floodWaitUntil) {
		r.floodWaitUntil = until
	}
}

// FloodWaitRemaining returns how long the current flood pause still lasts.
func (r *RateLimiter) FloodWaitRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := time.Until(r.floodWaitUntil); d > 0 {
		return d
	}
	return 0
}
