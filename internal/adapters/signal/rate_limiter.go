package signal

import (
	"sync"

	"github.com/dkeye/huddle/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per user.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perSecond events with bursts of burst. A
// non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[domain.UserID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *RateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	l, ok := rl.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

func (rl *RateLimiter) Forget(uid domain.UserID) {
	rl.mu.Lock()
	delete(rl.limiters, uid)
	rl.mu.Unlock()
}
