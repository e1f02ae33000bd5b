package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-edge-gateway/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterDeniesRequestOverMax(t *testing.T) {
	limiter := ratelimit.NewMemory()
	tier := ratelimit.Tier{Name: "auth", Window: 15 * time.Minute, Max: 5}
	ctx := context.Background()

	for i := 0; i < tier.Max; i++ {
		result, err := limiter.Check(ctx, tier, "user-1")
		require.NoError(t, err)
		require.True(t, result.Allowed, "request %d should be admitted", i+1)
		require.Equal(t, tier.Max-i-1, result.Remaining)
	}

	// The (max+1)th request in the window is denied.
	result, err := limiter.Check(ctx, tier, "user-1")
	require.NoError(t, err)
	require.False(t, result.Allowed)
	require.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestMemoryLimiterIdentitiesAreIndependent(t *testing.T) {
	limiter := ratelimit.NewMemory()
	tier := ratelimit.Tier{Name: "auth", Window: 15 * time.Minute, Max: 1}
	ctx := context.Background()

	result, err := limiter.Check(ctx, tier, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, tier, "user-1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	result, err = limiter.Check(ctx, tier, "user-2")
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestMemoryLimiterTiersAreIndependent(t *testing.T) {
	limiter := ratelimit.NewMemory()
	authTier := ratelimit.Tier{Name: "auth", Window: 15 * time.Minute, Max: 1}
	apiTier := ratelimit.Tier{Name: "api", Window: 15 * time.Minute, Max: 1}
	ctx := context.Background()

	result, err := limiter.Check(ctx, authTier, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, apiTier, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestMemoryLimiterWindowRollover(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ratelimit.NowTimeFunc = func() time.Time { return start }
	defer func() { ratelimit.NowTimeFunc = time.Now }()

	limiter := ratelimit.NewMemory()
	tier := ratelimit.Tier{Name: "auth", Window: time.Minute, Max: 1}
	ctx := context.Background()

	result, err := limiter.Check(ctx, tier, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, tier, "user-1")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	ratelimit.NowTimeFunc = func() time.Time { return start.Add(time.Minute) }

	result, err = limiter.Check(ctx, tier, "user-1")
	require.NoError(t, err)
	require.True(t, result.Allowed)
}

func TestMemoryLimiterConcurrentChecksAdmitExactlyMax(t *testing.T) {
	limiter := ratelimit.NewMemory()
	tier := ratelimit.Tier{Name: "api", Window: time.Minute, Max: 50}
	ctx := context.Background()

	const callers = 100
	var wg sync.WaitGroup
	var allowed sync.Map
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := limiter.Check(ctx, tier, "shared-identity")
			require.NoError(t, err)
			allowed.Store(i, result.Allowed)
		}(i)
	}
	wg.Wait()

	admitted := 0
	allowed.Range(func(_, v any) bool {
		if v.(bool) {
			admitted++
		}
		return true
	})
	require.Equal(t, tier.Max, admitted)
}
