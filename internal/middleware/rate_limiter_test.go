package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, user, ip int) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(user, ip, time.Minute)
	t.Cleanup(rl.Stop)
	clock := time.Date(2024, time.July, 3, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestCheckUserLimit(t *testing.T) {
	rl, clock := newTestLimiter(t, 3, 10)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.CheckUserLimit(42))
	}
	assert.False(t, rl.CheckUserLimit(42))
	assert.Equal(t, 0, rl.GetUserRemaining(42))
	assert.True(t, rl.CheckUserLimit(7), "other users have their own window")

	*clock = clock.Add(time.Minute + time.Second)
	assert.Equal(t, 3, rl.GetUserRemaining(42))
	assert.True(t, rl.CheckUserLimit(42))
}

func TestCheckIPLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, 2)

	assert.True(t, rl.CheckIPLimit("10.0.0.1"))
	assert.Equal(t, 1, rl.GetIPRemaining("10.0.0.1"))
	assert.True(t, rl.CheckIPLimit("10.0.0.1"))
	assert.False(t, rl.CheckIPLimit("10.0.0.1"))

	rl.Reset()
	assert.True(t, rl.CheckIPLimit("10.0.0.1"))
}

func TestZeroLimitDisables(t *testing.T) {
	rl, _ := newTestLimiter(t, 0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.CheckUserLimit(1))
	}
}

func TestSweepDropsExpired(t *testing.T) {
	rl, clock := newTestLimiter(t, 3, 3)
	rl.CheckUserLimit(1)
	rl.CheckIPLimit("10.0.0.1")

	*clock = clock.Add(2 * time.Minute)
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.userLimits)
	assert.Empty(t, rl.ipLimits)
}

func TestLimitByIP(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)
	h := rl.LimitByIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/sms/receive", nil)
	req.RemoteAddr = "10.0.0.9:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
