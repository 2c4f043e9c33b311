package internal

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Header names Reddit uses to communicate live quota.
const (
	DefaultRemainingHeader = "X-Ratelimit-Remaining"
	DefaultResetHeader     = "X-Ratelimit-Reset"
	DefaultUsedHeader      = "X-Ratelimit-Used"
)

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64
)

// RateLimitConfig controls how requests are throttled before reaching Reddit.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	// Used only until the first response headers arrive; after that the
	// authoritative remaining/reset values drive the steady budget.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int

	// Header names, overridable because the exact fields are service
	// configuration. Zero values select the X-Ratelimit-* defaults.
	RemainingHeader string
	ResetHeader     string
	UsedHeader      string
}

func (cfg RateLimitConfig) normalize() RateLimitConfig {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitBurst
	}
	if cfg.RemainingHeader == "" {
		cfg.RemainingHeader = DefaultRemainingHeader
	}
	if cfg.ResetHeader == "" {
		cfg.ResetHeader = DefaultResetHeader
	}
	if cfg.UsedHeader == "" {
		cfg.UsedHeader = DefaultUsedHeader
	}
	return cfg
}

// RateLimiter gates every outbound request behind two budgets: a burst
// token bucket spent first with no delay, and a steady budget driven by the
// authoritative remaining/reset response headers. One instance is shared by
// all requests a client issues; all methods are safe for concurrent use.
type RateLimiter struct {
	cfg    RateLimitConfig
	burst  *rate.Limiter
	logger *slog.Logger

	mu sync.Mutex
	// remaining is the steady budget estimate. Seeded from response headers,
	// decremented locally on each dispatch, overwritten on every response.
	// A negative value means no headers have been seen yet.
	remaining  float64
	used       float64
	resetAt    time.Time
	forceUntil time.Time
}

// NewRateLimiter builds a limiter from the config.
func NewRateLimiter(cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	cfg = cfg.normalize()

	limitPerSecond := rate.Limit(cfg.RequestsPerMinute / SecondsPerMinute)
	if limitPerSecond <= 0 {
		limitPerSecond = rate.Limit(1)
	}

	return &RateLimiter{
		cfg:       cfg,
		burst:     rate.NewLimiter(limitPerSecond, cfg.Burst),
		logger:    logger,
		remaining: -1,
	}
}

// Wait blocks until the caller may dispatch one request. A burst token is
// spent when one is available; otherwise the steady budget decides the
// delay: the remaining quota is spread evenly across the time left in the
// window, and an exhausted budget suspends the caller until the window
// resets. Returns the context error if cancelled while waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if rl.burst.Allow() {
		rl.spend()
		return nil
	}

	delay := rl.steadyDelay()
	if delay > 0 {
		if rl.logger != nil {
			rl.logger.Debug("throttling request", "delay", delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}

	rl.spend()
	return nil
}

// steadyDelay computes the cooperative wait before the next dispatch.
func (rl *RateLimiter) steadyDelay() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Nothing authoritative yet: pace at the configured steady rate by
	// waiting for the burst bucket to refill one token.
	if rl.remaining < 0 {
		return rl.burst.Reserve().Delay()
	}

	// The window has elapsed; the service will hand us a fresh budget with
	// the next response.
	if !rl.resetAt.After(now) {
		return 0
	}

	if rl.remaining <= 0 {
		return rl.resetAt.Sub(now)
	}

	return time.Duration(float64(rl.resetAt.Sub(now)) / rl.remaining)
}

// spend records the optimistic local decrement for one dispatched request.
func (rl *RateLimiter) spend() {
	rl.mu.Lock()
	if rl.remaining > 0 {
		rl.remaining--
	}
	rl.used++
	rl.mu.Unlock()
}

func (rl *RateLimiter) waitForForcedDelay(ctx context.Context) error {
	for {
		rl.mu.Lock()
		waitUntil := rl.forceUntil
		rl.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			rl.clearForcedDelay(waitUntil)
			return nil
		}

		if err := Sleep(ctx, waitUntil.Sub(now)); err != nil {
			return err
		}
		rl.clearForcedDelay(waitUntil)
	}
}

func (rl *RateLimiter) clearForcedDelay(previous time.Time) {
	rl.mu.Lock()
	if previous.Equal(rl.forceUntil) {
		rl.forceUntil = time.Time{}
	}
	rl.mu.Unlock()
}

// UpdateFromHeaders reconciles the steady budget with the authoritative
// values from a response. Local drift from optimistic decrements is
// overwritten whenever the headers are present. A Retry-After header defers
// every pending request.
func (rl *RateLimiter) UpdateFromHeaders(h http.Header) {
	if retryAfter := h.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			rl.DeferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := h.Get(rl.cfg.RemainingHeader)
	resetHeader := h.Get(rl.cfg.ResetHeader)
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	rl.mu.Lock()
	rl.remaining = remaining
	rl.resetAt = time.Now().Add(time.Duration(resetSeconds * float64(time.Second)))
	if usedHeader := h.Get(rl.cfg.UsedHeader); usedHeader != "" {
		if used, err := strconv.ParseFloat(usedHeader, ParseFloatBitSize); err == nil {
			rl.used = used
		}
	}
	rl.mu.Unlock()

	if rl.logger != nil {
		rl.logger.Debug("rate budget updated",
			"remaining", remaining,
			"reset_seconds", resetSeconds)
	}
}

// DeferRequests forces every subsequent Wait to hold off for at least d.
func (rl *RateLimiter) DeferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	rl.mu.Lock()
	if until.After(rl.forceUntil) {
		rl.forceUntil = until
	}
	rl.mu.Unlock()
}

// Snapshot returns the current steady budget estimate for diagnostics:
// remaining requests (negative when unknown), requests used, and the
// window reset time.
func (rl *RateLimiter) Snapshot() (remaining, used float64, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.remaining, rl.used, rl.resetAt
}
