package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-client request budget using token
// buckets, one per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter

	perMinute int
	burst     int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientIdleTimeout is how long an idle client's bucket is kept before
// pruning reclaims it.
const clientIdleTimeout = 10 * time.Minute

// NewRateLimiter creates a limiter allowing perMinute requests per
// client, with a burst of a quarter of that.
func NewRateLimiter(perMinute int) *RateLimiter {
	burst := perMinute / 4
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients:   make(map[string]*clientLimiter),
		perMinute: perMinute,
		burst:     burst,
	}
}

// Allow reports whether a request from the given client may proceed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cl, ok := rl.clients[clientIP]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.burst),
		}
		rl.clients[clientIP] = cl
		rl.pruneLocked(now)
	}
	cl.lastSeen = now
	return cl.limiter.Allow()
}

// pruneLocked drops buckets of clients idle longer than the timeout.
// Callers hold the mutex.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > clientIdleTimeout {
			delete(rl.clients, ip)
		}
	}
}

// ActiveClients returns the number of tracked clients.
func (rl *RateLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
