package bybit

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a sliding-window request budget so the client stays
// under the exchange's per-window limit.
type rateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time
}

func newRateLimiter(maxRequests int, window time.Duration, safetyFactor float64) *rateLimiter {
	budget := int(float64(maxRequests) * safetyFactor)
	if budget < 1 {
		budget = 1
	}
	return &rateLimiter{
		max:    budget,
		window: window,
	}
}

// Wait blocks until a request slot is available or ctx is done, then
// records the request.
func (r *rateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()

		// drop timestamps that fell out of the window
		cut := 0
		for cut < len(r.stamps) && now.Sub(r.stamps[cut]) >= r.window {
			cut++
		}
		r.stamps = r.stamps[cut:]

		if len(r.stamps) < r.max {
			r.stamps = append(r.stamps, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.window - now.Sub(r.stamps[0])
		r.mu.Unlock()

		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
}
