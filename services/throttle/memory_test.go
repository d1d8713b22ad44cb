package throttlesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryThrottler(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	thr := NewMemoryThrottler(3, 10*time.Minute)
	thr.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, err := thr.Allowed(ctx, "12345678")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
		require.NoError(t, thr.Fail(ctx, "12345678"))
	}

	allowed, _ := thr.Allowed(ctx, "12345678")
	assert.False(t, allowed, "max attempts reached")

	allowed, _ = thr.Allowed(ctx, "87654321")
	assert.True(t, allowed, "other keys are not throttled")

	// window passed
	now = now.Add(10 * time.Minute)
	allowed, _ = thr.Allowed(ctx, "12345678")
	assert.True(t, allowed, "window passed")

	// reset
	for i := 0; i < 3; i++ {
		require.NoError(t, thr.Fail(ctx, "12345678"))
	}
	allowed, _ = thr.Allowed(ctx, "12345678")
	assert.False(t, allowed)
	require.NoError(t, thr.Reset(ctx, "12345678"))
	allowed, _ = thr.Allowed(ctx, "12345678")
	assert.True(t, allowed, "reset")
}

func TestMemoryThrottler_FailSweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	thr := NewMemoryThrottler(3, 10*time.Minute)
	thr.nowFunc = func() time.Time { return now }

	require.NoError(t, thr.Fail(ctx, "11111111"))
	require.NoError(t, thr.Fail(ctx, "22222222"))
	now = now.Add(5 * time.Minute)
	require.NoError(t, thr.Fail(ctx, "33333333"))
	assert.Len(t, thr.attempts, 3)

	// first two windows closed, the third is still open
	now = now.Add(6 * time.Minute)
	require.NoError(t, thr.Fail(ctx, "44444444"))
	assert.Len(t, thr.attempts, 2)
	assert.Contains(t, thr.attempts, "33333333")
	assert.Contains(t, thr.attempts, "44444444")

	// the window is not extended by later failures
	require.NoError(t, thr.Fail(ctx, "33333333"))
	now = now.Add(4 * time.Minute)
	allowed, err := thr.Allowed(ctx, "33333333")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NotContains(t, thr.attempts, "33333333")
}
