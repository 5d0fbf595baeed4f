package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Wait blocks until the next request may be sent
	Wait(ctx context.Context) error
}

// WaitObserver receives the time spent blocked in Wait
type WaitObserver func(time.Duration)

// FixedInterval enforces a minimum delay between consecutive requests
type FixedInterval struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	observe WaitObserver
}

// NewFixedInterval creates a limiter allowing one request per interval.
// A non-positive interval disables limiting.
func NewFixedInterval(interval time.Duration) *FixedInterval {
	return &FixedInterval{
		limiter: newRateLimiter(interval),
	}
}

func newRateLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// OnWait registers an observer for blocked time
func (f *FixedInterval) OnWait(observe WaitObserver) *FixedInterval {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe = observe
	return f
}

// Wait blocks until the interval since the previous request has elapsed
func (f *FixedInterval) Wait(ctx context.Context) error {
	f.mu.Lock()
	limiter, observe := f.limiter, f.observe
	f.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if observe != nil {
		observe(time.Since(start))
	}
	return nil
}
