package ratelimiter

import (
	"sync"
	"time"
)

// Limiter decides whether a source may proceed; on rejection it reports how
// long until the window resets.
type Limiter interface {
	Allow(source string) (bool, time.Duration)
	Close()
}

type window struct {
	count   int
	resetAt time.Time
}

type FixedWindowRateLimiter struct {
	mu       sync.Mutex
	counts   map[string]*window
	limit    int
	duration time.Duration
	done     chan struct{}
}

func NewFixedWindowRateLimiter(limit int, duration time.Duration) *FixedWindowRateLimiter {
	rl := &FixedWindowRateLimiter{
		counts:   make(map[string]*window),
		limit:    limit,
		duration: duration,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *FixedWindowRateLimiter) Allow(source string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win, ok := rl.counts[source]
	if !ok || now.After(win.resetAt) {
		rl.counts[source] = &window{count: 1, resetAt: now.Add(rl.duration)}
		return true, 0
	}

	if win.count >= rl.limit {
		return false, time.Until(win.resetAt)
	}

	win.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) cleanupLoop() {
	tick := time.NewTicker(rl.duration)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			now := time.Now()
			rl.mu.Lock()
			for source, win := range rl.counts {
				if now.After(win.resetAt) {
					delete(rl.counts, source)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) Close() {
	close(rl.done)
}
