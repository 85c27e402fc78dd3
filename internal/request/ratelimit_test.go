package request

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(10, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Allow("ethereum"), "should allow request %d in burst", i)
	}
	assert.False(t, rl.Allow("ethereum"), "should deny request after burst exhausted")
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "ethereum"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "ethereum"))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_SeparateEndpoints(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(10, 2)

	assert.True(t, rl.Allow("ethereum"))
	assert.True(t, rl.Allow("ethereum"))
	assert.False(t, rl.Allow("ethereum"))

	assert.True(t, rl.Allow("polygon"))
	assert.True(t, rl.Allow("polygon"))
}

func TestRateLimiter_SetLimit(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(10, 1)

	assert.True(t, rl.Allow("bsc"))
	assert.False(t, rl.Allow("bsc"))

	rl.SetLimit("bsc", Limit{Rate: 10, Burst: 3})
	assert.True(t, rl.Allow("bsc"))
	assert.True(t, rl.Allow("bsc"))
	assert.True(t, rl.Allow("bsc"))
	assert.False(t, rl.Allow("bsc"))

	assert.True(t, rl.Allow("base"))
	assert.False(t, rl.Allow("base"), "other endpoints keep the default burst")
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, 1)

	require.NoError(t, rl.Wait(context.Background(), "ethereum"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx, "ethereum"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(100, 100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rl.Allow("ethereum")
		}()
	}
	wg.Wait()

	assert.Len(t, rl.limiters, 1)
}
