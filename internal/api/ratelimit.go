package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements a per-user token bucket. The key is the user ID
// so clients cannot bypass throttling by opening new chats.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[int64]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per user with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[int64]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow checks if a request is allowed for the given user.
func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	v, ok := r.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Evict drops users idle for longer than the idle window and returns how
// many were removed.
func (r *RateLimiter) Evict() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idle)
	removed := 0
	for key, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, key)
			removed++
		}
	}
	return removed
}

// Run evicts idle users every interval until ctx is done.
func (r *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Evict(); n > 0 {
				slog.Debug("Rate limiter evicted idle users", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
