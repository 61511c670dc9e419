package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRateLimiter(client), mr
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "client-a", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := rl.Allow(ctx, "client-a", 2, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t)
	ctx := context.Background()

	ok, err := rl.Allow(ctx, "client-a", 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = rl.Allow(ctx, "client-a", 1, time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = rl.Allow(ctx, "client-b", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterWindowExpires(t *testing.T) {
	rl, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "client-a", 2, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := rl.Allow(ctx, "client-a", 2, time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(time.Second)

	ok, err = rl.Allow(ctx, "client-a", 2, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "counter should reset once the window expires")
}

func TestRateLimiterDoesNotRefreshWindowPerRequest(t *testing.T) {
	rl, mr := newTestLimiter(t)
	ctx := context.Background()

	ok, err := rl.Allow(ctx, "client-a", 5, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(600 * time.Millisecond)

	ok, err = rl.Allow(ctx, "client-a", 5, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The second request must not push the window out; 400ms of the
	// original second remain.
	assert.Equal(t, 400*time.Millisecond, mr.TTL(rateLimitKey("client-a")))
}

func TestRateLimiterSteadyTrafficBelowLimitStaysAllowed(t *testing.T) {
	rl, mr := newTestLimiter(t)
	ctx := context.Background()

	// 2 requests every 600ms is at most 4 in any one-second window.
	for i := 0; i < 10; i++ {
		for j := 0; j < 2; j++ {
			ok, err := rl.Allow(ctx, "client-a", 5, time.Second)
			require.NoError(t, err)
			assert.True(t, ok, "steady request %d should pass", i*2+j+1)
		}
		mr.FastForward(600 * time.Millisecond)
	}
}
