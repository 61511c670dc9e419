package memory

import (
	"context"
	"sync"
	"time"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// RateLimiter is an in-process fixed-window rate limiter used in sim mode,
// where no Redis is available.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*rateWindow)}
}

// Allow reports whether a request for the key is within limit requests per
// window.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &rateWindow{count: 1, resetAt: now.Add(window)}
		return limit >= 1, nil
	}

	w.count++
	return w.count <= limit, nil
}
