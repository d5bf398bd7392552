package middleware

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window in-memory limiter keyed by Telegram user or
// by client IP. The bot checks users; the intake server checks IPs.
type RateLimiter struct {
	userLimits map[int64]*window
	ipLimits   map[string]*window
	mu         sync.Mutex

	userMaxRequests int
	ipMaxRequests   int
	window          time.Duration
	now             func() time.Time
	stop            chan struct{}
	stopOnce        sync.Once
}

type window struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Stop to end it.
func NewRateLimiter(userMaxRequests, ipMaxRequests int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		userLimits:      make(map[int64]*window),
		ipLimits:        make(map[string]*window),
		userMaxRequests: userMaxRequests,
		ipMaxRequests:   ipMaxRequests,
		window:          period,
		now:             time.Now,
		stop:            make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// CheckUserLimit records one request for the user and reports whether it is allowed.
func (rl *RateLimiter) CheckUserLimit(userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return hit(rl.userLimits, userID, rl.userMaxRequests, rl.window, rl.now())
}

// CheckIPLimit records one request for the address and reports whether it is allowed.
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return hit(rl.ipLimits, ip, rl.ipMaxRequests, rl.window, rl.now())
}

func hit[K comparable](limits map[K]*window, key K, ceiling int, period time.Duration, now time.Time) bool {
	if ceiling <= 0 {
		return true
	}
	limit, exists := limits[key]
	if !exists || now.After(limit.resetTime) {
		limits[key] = &window{requests: 1, resetTime: now.Add(period)}
		return true
	}
	if limit.requests >= ceiling {
		return false
	}
	limit.requests++
	return true
}

// GetUserRemaining returns remaining requests for user
func (rl *RateLimiter) GetUserRemaining(userID int64) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return remaining(rl.userLimits, userID, rl.userMaxRequests, rl.now())
}

// GetIPRemaining returns remaining requests for IP
func (rl *RateLimiter) GetIPRemaining(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return remaining(rl.ipLimits, ip, rl.ipMaxRequests, rl.now())
}

func remaining[K comparable](limits map[K]*window, key K, ceiling int, now time.Time) int {
	limit, exists := limits[key]
	if !exists || now.After(limit.resetTime) {
		return ceiling
	}
	if left := ceiling - limit.requests; left > 0 {
		return left
	}
	return 0
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops expired windows.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for userID, limit := range rl.userLimits {
		if now.After(limit.resetTime) {
			delete(rl.userLimits, userID)
		}
	}
	for ip, limit := range rl.ipLimits {
		if now.After(limit.resetTime) {
			delete(rl.ipLimits, ip)
		}
	}
}

// Stop ends the cleanup loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Reset clears all rate limits (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.userLimits = make(map[int64]*window)
	rl.ipLimits = make(map[string]*window)
}
