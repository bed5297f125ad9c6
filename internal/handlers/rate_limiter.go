package handlers

import (
	"sync"
	"time"
)

// rateLimiter reports whether key may proceed and, if not, how long until it may.
type rateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// windowLimiter is a fixed-window counter keyed by caller.
type windowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]attemptWindow
}

type attemptWindow struct {
	count   int
	resetAt time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &windowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]attemptWindow),
	}
}

func (l *windowLimiter) Allow(key string) (bool, time.Duration) {
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || !now.Before(current.resetAt) {
		l.evictLocked(now)
		l.windows[key] = attemptWindow{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if current.count >= l.limit {
		return false, current.resetAt.Sub(now)
	}
	current.count++
	l.windows[key] = current
	return true, 0
}

func (l *windowLimiter) evictLocked(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
