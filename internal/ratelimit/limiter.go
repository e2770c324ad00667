// Package ratelimit implements a fixed-window request limiter keyed by caller identity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts an attempt against key and reports whether it fits the window.
// Rejected attempts are counted as well.
type Limiter interface {
	CheckAndConsume(ctx context.Context, key string) (Decision, error)
}

type window struct {
	count   int
	resetAt time.Time
}

type MemoryLimiter struct {
	Limit  int
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Limit:   limit,
		Window:  win,
		windows: map[string]*window{},
		now:     time.Now,
	}
}

func (l *MemoryLimiter) CheckAndConsume(ctx context.Context, key string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if l.Limit <= 0 || l.Window <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.Window)}
		l.windows[key] = w
		l.sweepLocked(now)
	}
	w.count++
	return decide(w.count, l.Limit, w.resetAt.Sub(now)), nil
}

// sweepLocked drops expired windows so idle keys do not accumulate.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}

func decide(count, limit int, untilReset time.Duration) Decision {
	if untilReset < 0 {
		untilReset = 0
	}
	if count > limit {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: untilReset}
	}
	return Decision{Allowed: true, Remaining: limit - count}
}
