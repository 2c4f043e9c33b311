package internal

import (
	"context"
	"time"
)

// RetryPolicy is the shared bounded-backoff schedule used by the
// authenticator for token exchanges and by the HTTP client for transient
// request failures. Configure it once and hand it to both.
type RetryPolicy struct {
	// MaxAttempts caps the total number of tries, the first one included.
	MaxAttempts int
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the schedule used when the caller does not
// supply one: 4 attempts with 500ms, 1s, 2s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// normalize fills in zero fields with the defaults.
func (p RetryPolicy) normalize() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// Backoff returns the delay to wait after the given zero-based attempt:
// BaseDelay doubled per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalize()
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Exhausted reports whether the given zero-based attempt was the last one
// the policy allows.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.normalize().MaxAttempts-1
}

// Sleep waits for d or until the context is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
