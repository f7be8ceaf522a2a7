package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

var (
	_ recipe.ListCache = (*MemoryCache)(nil)
	_ recipe.ListCache = (*RedisCache)(nil)
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get(ctx)
	assert.False(t, ok, "cold cache misses")

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	stored, err := c.SetIfGeneration(ctx, gen, []recipe.Recipe{{ID: 1, Name: "黒豆", Keywords: []string{"正月"}}})
	require.NoError(t, err)
	require.True(t, stored)
	got, ok := c.Get(ctx)
	require.True(t, ok)
	require.Len(t, got, 1)

	// Returned lists are copies
	got[0].Keywords[0] = "mutated"
	again, _ := c.Get(ctx)
	assert.Equal(t, "正月", again[0].Keywords[0])

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx)
	assert.False(t, ok, "expired entry misses")

	stored, err = c.SetIfGeneration(ctx, gen, nil)
	require.NoError(t, err)
	require.True(t, stored)
	got, ok = c.Get(ctx)
	assert.True(t, ok, "an empty list is a valid cached value")
	assert.Empty(t, got)

	require.NoError(t, c.Invalidate(ctx))
	_, ok = c.Get(ctx)
	assert.False(t, ok)
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	stored, err := c.SetIfGeneration(ctx, 0, []recipe.Recipe{{ID: 1}})
	require.NoError(t, err)
	require.True(t, stored)
	_, ok := c.Get(ctx)
	assert.True(t, ok)
}

func TestMemoryCache_StaleGenerationRejected(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)

	before, err := c.Generation(ctx)
	require.NoError(t, err)

	// A write lands between the reader's generation read and its set
	require.NoError(t, c.Invalidate(ctx))

	stored, err := c.SetIfGeneration(ctx, before, []recipe.Recipe{{ID: 1, Name: "古い一覧"}})
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok := c.Get(ctx)
	assert.False(t, ok, "stale list must not be cached")

	after, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)

	stored, err = c.SetIfGeneration(ctx, after, []recipe.Recipe{{ID: 1}, {ID: 2}})
	require.NoError(t, err)
	assert.True(t, stored)
	got, ok := c.Get(ctx)
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestRedisCache_UnreachableDegradesToMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisCacheWithClient(client, time.Minute)
	defer func() { _ = c.Close() }()

	_, ok := c.Get(ctx)
	assert.False(t, ok)
	_, err := c.Generation(ctx)
	assert.Error(t, err)
	stored, err := c.SetIfGeneration(ctx, 0, []recipe.Recipe{{ID: 1}})
	assert.Error(t, err)
	assert.False(t, stored)
	assert.Error(t, c.Invalidate(ctx))
	assert.Error(t, c.Ping(ctx))
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url", time.Minute)
	assert.Error(t, err)
}
