// Package ratelimit provides the fixed-window safety limiter guarding batch
// processing volume.
package ratelimit

import (
	"sync"
	"time"
)

// WindowLimiter counts processed units inside a fixed time window and trips
// once the window's budget is exhausted. The window state is explicit and
// evicted on roll-over, so the limiter never grows with traffic.
type WindowLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

// NewWindowLimiter creates a limiter allowing max events per window.
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	if max <= 0 {
		max = 10000
	}
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (l *WindowLimiter) roll(now time.Time) {
	if now.Sub(l.windowStart) >= l.window {
		l.count = 0
		l.windowStart = now
	}
}

// Allow reports whether another unit fits in the current window.
func (l *WindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	return l.count < l.max
}

// Record counts one processed unit and reports whether the window budget is
// still intact afterwards.
func (l *WindowLimiter) Record() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	l.count++
	return l.count <= l.max
}

// Count returns the number of units recorded in the current window.
func (l *WindowLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(l.now())
	return l.count
}

// Reset clears the window unconditionally.
func (l *WindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count = 0
	l.windowStart = l.now()
}
