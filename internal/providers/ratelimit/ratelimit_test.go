package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireBlocksUntilRefill(t *testing.T) {
	l := New()
	l.Configure("test", Config{Capacity: 1, WindowSeconds: 1})

	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "test"))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, "test"))
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New()
	l.Configure("test", Config{Capacity: 1, WindowSeconds: 60})
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "test"))

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(cctx, "test")
	require.Error(t, err)
}

func TestBudgetGuardEntersFallbackMode(t *testing.T) {
	l := New()
	l.Configure("test", Config{Capacity: 100, WindowSeconds: 1, MonthlyBudget: 2, WarnThreshold: 0.5})
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx, "test"))
	require.NoError(t, l.Acquire(ctx, "test"))

	status := l.Status("test")
	require.True(t, status.FallbackMode)
}

func TestUnknownProviderGetsDefaultBucket(t *testing.T) {
	l := New()
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, "never-configured"))
}
