package internal

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurstAllowsSpikesWithoutDelay(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 5}, nil)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"requests within the burst allowance must not be paced")
}

func TestWaitBlocksWhenBothBudgetsExhausted(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, nil)

	// Drain the burst bucket and install an exhausted steady budget that
	// resets shortly.
	require.NoError(t, rl.Wait(context.Background()))
	h := http.Header{}
	h.Set(DefaultRemainingHeader, "0")
	h.Set(DefaultResetHeader, "0.2")
	rl.UpdateFromHeaders(h)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond,
		"an exhausted steady budget must suspend callers until the window resets")
}

func TestSteadySpreadsRemainingOverWindow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, nil)
	require.NoError(t, rl.Wait(context.Background()))

	// 2 requests left in a 400ms window: roughly 200ms per dispatch.
	h := http.Header{}
	h.Set(DefaultRemainingHeader, "2")
	h.Set(DefaultResetHeader, "0.4")
	rl.UpdateFromHeaders(h)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestWaitContextCancelled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, nil)
	require.NoError(t, rl.Wait(context.Background()))

	h := http.Header{}
	h.Set(DefaultRemainingHeader, "0")
	h.Set(DefaultResetHeader, "60")
	rl.UpdateFromHeaders(h)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	require.Error(t, err)
}

func TestUpdateFromHeadersOverwritesLocalEstimate(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{}, nil)

	h := http.Header{}
	h.Set(DefaultRemainingHeader, "42")
	h.Set(DefaultResetHeader, "30")
	h.Set(DefaultUsedHeader, "18")
	rl.UpdateFromHeaders(h)

	remaining, used, resetAt := rl.Snapshot()
	assert.Equal(t, 42.0, remaining)
	assert.Equal(t, 18.0, used)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), resetAt, time.Second)
}

func TestUpdateFromHeadersIgnoresPartialHeaders(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{}, nil)

	h := http.Header{}
	h.Set(DefaultRemainingHeader, "42")
	rl.UpdateFromHeaders(h)

	remaining, _, _ := rl.Snapshot()
	assert.Equal(t, -1.0, remaining, "a lone remaining header must not be trusted")
}

func TestSpendDecrementsOptimistically(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Burst: 10}, nil)

	h := http.Header{}
	h.Set(DefaultRemainingHeader, "5")
	h.Set(DefaultResetHeader, "60")
	rl.UpdateFromHeaders(h)

	require.NoError(t, rl.Wait(context.Background()))
	require.NoError(t, rl.Wait(context.Background()))

	remaining, _, _ := rl.Snapshot()
	assert.Equal(t, 3.0, remaining)
}

func TestRetryAfterDefersAllRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Burst: 10}, nil)

	h := http.Header{}
	h.Set("Retry-After", "0.2")
	rl.UpdateFromHeaders(h)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond,
		"Retry-After must pause even burst-eligible requests")
}

func TestDeferRequestsKeepsLatestDeadline(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{Burst: 10}, nil)

	rl.DeferRequests(200 * time.Millisecond)
	rl.DeferRequests(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond,
		"a shorter deferral must not shrink a longer one")
}

func TestElapsedWindowDoesNotBlock(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, Burst: 1}, nil)
	require.NoError(t, rl.Wait(context.Background()))

	h := http.Header{}
	h.Set(DefaultRemainingHeader, "0")
	h.Set(DefaultResetHeader, "0.01")
	rl.UpdateFromHeaders(h)
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"a window that already reset must not throttle")
}

func TestConfigNormalizeDefaults(t *testing.T) {
	cfg := RateLimitConfig{}.normalize()
	assert.Equal(t, float64(DefaultRequestsPerMinute), cfg.RequestsPerMinute)
	assert.Equal(t, DefaultRateLimitBurst, cfg.Burst)
	assert.Equal(t, DefaultRemainingHeader, cfg.RemainingHeader)
}
