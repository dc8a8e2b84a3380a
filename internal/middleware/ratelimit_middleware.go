package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// InvalidAuthRateLimiter throttles failed authentication attempts per IP.
// Successful requests never consume tokens.
type InvalidAuthRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	every    rate.Limit
	burst    int
	idle     time.Duration
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInvalidAuthRateLimiter allows burst failures per IP, refilled at one
// per window/burst.
func NewInvalidAuthRateLimiter(burst int, window time.Duration) *InvalidAuthRateLimiter {
	if burst <= 0 {
		burst = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &InvalidAuthRateLimiter{
		limiters: make(map[string]*ipLimiter),
		every:    rate.Every(window / time.Duration(burst)),
		burst:    burst,
		idle:     window,
	}
}

// Allow checks if IP can make another attempt.
func (r *InvalidAuthRateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(r.every, r.burst)}
		r.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter.Allow()
}

// Run drops limiters of IPs idle for a full window until ctx is done.
func (r *InvalidAuthRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *InvalidAuthRateLimiter) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ip, l := range r.limiters {
		if now.Sub(l.lastSeen) > r.idle {
			delete(r.limiters, ip)
		}
	}
}
