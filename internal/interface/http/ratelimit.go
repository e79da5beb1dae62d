package http

import (
	"strconv"
	"sync"
	"time"
)

// rateLimiter allows limit requests per key in any trailing window. Keys
// idle for a full window are dropped by a background sweep.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	requests map[string][]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		requests: make(map[string][]time.Time),
		done:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether key may make another request now, and counts it if
// so.
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	hits := rl.trim(rl.requests[key], now)
	ok := len(hits) < rl.limit
	if ok {
		hits = append(hits, now)
	}
	rl.requests[key] = hits
	return ok
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// trim drops hits that fell out of the window. hits is in arrival order, so
// everything before the first live hit goes.
func (rl *rateLimiter) trim(hits []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

func (rl *rateLimiter) sweep() {
	t := time.NewTicker(rl.window)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.cleanup()
		}
	}
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, hits := range rl.requests {
		if hits = rl.trim(hits, now); len(hits) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = hits
		}
	}
}

func strconvSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Round(time.Second) / time.Second))
}
