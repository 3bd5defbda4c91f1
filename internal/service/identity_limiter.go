package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IdentityLimiter hands out one token bucket per caller key: the identity, or the client IP for
// anonymous reads. Buckets idle for longer than ttl are dropped on the next sweep.
type IdentityLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIdentityLimiter(qps float64, burst int) *IdentityLimiter {
	// 配置为 0 时不限流
	limit := rate.Limit(qps)
	if qps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &IdentityLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// Get returns the key's limiter, creating it on first use.
func (l *IdentityLimiter) Get(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	entry, ok := l.limiters[id]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[id] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (l *IdentityLimiter) Allow(id string) bool {
	return l.Get(id).Allow()
}

// Sweep drops limiters not used within the ttl and reports how many remain.
func (l *IdentityLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.ttl)
	for id, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
		}
	}
	return len(l.limiters)
}
