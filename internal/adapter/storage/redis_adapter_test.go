package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getRedisClient uses REDIS_ADDR when set and an in-process server otherwise.
func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"test-idem-key")

	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	require.NoError(t, err)
	assert.True(t, ok, "expected first call to succeed")

	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	require.NoError(t, err)
	assert.False(t, ok, "expected second call to fail")

	ttl, err := client.TTL(ctx, idempotencyKeyPrefix+"test-idem-key").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestReleaseIdempotency_AllowsRetry(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"release-key")

	ok, err := adapter.SetIdempotency(ctx, "release-key")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, adapter.ReleaseIdempotency(ctx, "release-key"))

	ok, err = adapter.SetIdempotency(ctx, "release-key")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompleteIdempotency_BlocksRelease(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"done-key")

	ok, err := adapter.SetIdempotency(ctx, "done-key")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, adapter.CompleteIdempotency(ctx, "done-key"))
	require.NoError(t, adapter.ReleaseIdempotency(ctx, "done-key"))

	val, err := client.Get(ctx, idempotencyKeyPrefix+"done-key").Result()
	require.NoError(t, err)
	assert.Equal(t, idempotencyDone, val)

	ok, err = adapter.SetIdempotency(ctx, "done-key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompleteIdempotency_MissingKey(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"never-set")

	require.NoError(t, adapter.CompleteIdempotency(ctx, "never-set"))

	n, err := client.Exists(ctx, idempotencyKeyPrefix+"never-set").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	assert.Equal(t, int32(1), successCount.Load())
}

func TestMemoryCache_MatchesRedisSemantics(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	ok, _ := c.SetIdempotency(ctx, "k")
	assert.True(t, ok)
	ok, _ = c.SetIdempotency(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, c.ReleaseIdempotency(ctx, "k"))
	ok, _ = c.SetIdempotency(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, c.CompleteIdempotency(ctx, "k"))
	require.NoError(t, c.ReleaseIdempotency(ctx, "k"))
	ok, _ = c.SetIdempotency(ctx, "k")
	assert.False(t, ok)
}
