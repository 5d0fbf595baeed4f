package retry

import (
	"context"
	"time"

	errs "pmcharvest/pkg/errors"
)

// BackoffStrategy defines the delay before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// LinearBackoff grows the delay by Increment for every failed attempt
type LinearBackoff struct {
	Increment time.Duration
	MaxDelay  time.Duration
}

// NextDelay calculates the next delay using linear backoff
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := lb.Increment * time.Duration(attempt)
	if lb.MaxDelay > 0 && delay > lb.MaxDelay {
		delay = lb.MaxDelay
	}
	return delay
}

// ConstantBackoff waits the same delay after every failure
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff picks a backoff strategy from the type of the failure
type ErrorTypeBackoff struct {
	// Throttled is used after HTTP 429
	Throttled BackoffStrategy
	// Default covers transport errors and other statuses
	Default BackoffStrategy
}

// NewErrorTypeBackoff returns linear backoff for throttling and a constant delay otherwise
func NewErrorTypeBackoff(throttleStep, retryDelay time.Duration) *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		Throttled: &LinearBackoff{Increment: throttleStep},
		Default:   &ConstantBackoff{Delay: retryDelay},
	}
}

// Select returns the strategy for err
func (etb *ErrorTypeBackoff) Select(err error) BackoffStrategy {
	if errs.Is(err, errs.ErrorTypeThrottled) {
		return etb.Throttled
	}
	return etb.Default
}
