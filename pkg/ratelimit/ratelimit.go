package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces out operations so that consecutive calls to Wait return at
// least interval apart, plus optional random jitter. The first call never
// blocks. It is safe for concurrent use; waiters are served one at a time.
type Limiter struct {
	interval time.Duration
	jitter   float64 // 0.0 to 1.0, fraction of interval added at random

	mu  sync.Mutex
	lim *rate.Limiter
}

// NewLimiter creates a limiter with the given minimum gap. If interval is <= 0
// the limiter never blocks.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	l := &Limiter{interval: interval, jitter: jitter}
	if interval > 0 {
		l.lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return l
}

// Wait blocks until the gap since the previous Wait has elapsed, or until the
// context is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// The refill rate picked now decides how long the next token takes, so
	// every gap stays at or above interval.
	if l.jitter > 0 {
		gap := l.interval + time.Duration(float64(l.interval)*l.jitter*rand.Float64())
		l.lim.SetLimit(rate.Every(gap))
	}
	return l.lim.Wait(ctx)
}

// Reset forgets the previous operation so the next Wait returns immediately.
func (l *Limiter) Reset() {
	if l == nil || l.lim == nil {
		return
	}
	l.mu.Lock()
	l.lim = rate.NewLimiter(rate.Every(l.interval), 1)
	l.mu.Unlock()
}
