package server

import (
	"sync"
	"time"
)

// RateLimiter implements per-client rate limiting with a sliding window
type RateLimiter struct {
	limits          map[string][]time.Time
	maxRequests     int
	window          time.Duration
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter allows maxRequestsPerMinute requests per client in any one-minute window
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	return newRateLimiter(maxRequestsPerMinute, time.Minute)
}

func newRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limits:          make(map[string][]time.Time),
		maxRequests:     maxRequests,
		window:          window,
		cleanupInterval: 5 * window,
		stopCleanup:     make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// Allow records a request from client and reports whether it is within the limit
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	requests := prune(rl.limits[client], now.Add(-rl.window))

	if len(requests) >= rl.maxRequests {
		rl.limits[client] = requests
		return false
	}

	rl.limits[client] = append(requests, now)
	return true
}

// RetryAfter returns the number of seconds until client may send another request
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	requests := rl.limits[client]
	if len(requests) == 0 {
		return 0
	}

	wait := rl.window - time.Since(requests[0])
	if wait <= 0 {
		return 0
	}
	// round up to whole seconds
	return int((wait + time.Second - 1) / time.Second)
}

func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup forgets clients with no request inside the window
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for client, requests := range rl.limits {
		requests = prune(requests, cutoff)
		if len(requests) == 0 {
			delete(rl.limits, client)
		} else {
			rl.limits[client] = requests
		}
	}
}

// Stop stops the cleanup goroutine; it is safe to call more than once
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// prune drops timestamps at or before cutoff; requests are in ascending order
func prune(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}
