package httpapi

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most limit calls per key inside a rolling window.
// Keys are usually the caller's remote host so one operator cannot starve another.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu    sync.Mutex
	calls map[string][]time.Time
}

// NewSlidingWindowLimiter returns a limiter; a non-positive window or limit disables it.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &SlidingWindowLimiter{
		window: window,
		limit:  limit,
		now:    timeSource,
		calls:  make(map[string][]time.Time),
	}
}

// Allow records a call for key and reports whether it fits in the window.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	//1.- Expire every key so idle callers do not pin memory.
	for k, stamps := range l.calls {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.calls, k)
			continue
		}
		l.calls[k] = kept
	}
	if len(l.calls[key]) >= l.limit {
		return false
	}
	l.calls[key] = append(l.calls[key], now)
	return true
}

// Keys reports how many callers currently hold window slots.
func (l *SlidingWindowLimiter) Keys() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}
