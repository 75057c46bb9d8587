package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is the shared admission gate in front of the API: one bucket
// per identity covering every route, so two back-to-back calls to unrelated
// endpoints still count against the same budget.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newRateLimiter(max int, period time.Duration) *rateLimiter {
	limit := rate.Inf
	if period > 0 {
		limit = rate.Limit(float64(max) / period.Seconds())
	}
	return &rateLimiter{
		limit:   limit,
		burst:   max,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (rl *rateLimiter) bucket(identity string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[identity]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[identity] = b
	}
	return b
}

// Admit takes one slot from the identity's bucket. On denial it reports how
// long the caller has to wait, without consuming the slot.
func (rl *rateLimiter) Admit(identity string) (time.Duration, bool) {
	res := rl.bucket(identity).Reserve()
	if !res.OK() {
		return rate.InfDuration, false
	}
	if wait := res.Delay(); wait > 0 {
		res.Cancel()
		return wait, false
	}
	return 0, true
}
