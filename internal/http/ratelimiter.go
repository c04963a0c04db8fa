package httpapi

import (
	"sync"
	"time"
)

// SlidingWindowLimiter enforces a maximum number of requests per client key within a time window.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
	calls   int
}

// sweepEvery bounds how often idle client windows are dropped.
const sweepEvery = 1024

// NewSlidingWindowLimiter constructs a limiter allowing up to limit requests per key per window.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &SlidingWindowLimiter{
		window:  window,
		limit:   limit,
		now:     timeSource,
		clients: make(map[string][]time.Time),
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(cutoff)
	}

	//1.- Trim the caller's window in place before counting it.
	events := l.clients[key]
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.clients[key] = kept
		return false
	}
	l.clients[key] = append(kept, now)
	return true
}

// Clients reports how many keys currently hold a window.
func (l *SlidingWindowLimiter) Clients() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *SlidingWindowLimiter) sweepLocked(cutoff time.Time) {
	for key, events := range l.clients {
		if len(events) == 0 || !events[len(events)-1].After(cutoff) {
			delete(l.clients, key)
		}
	}
}
