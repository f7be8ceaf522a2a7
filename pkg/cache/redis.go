package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yukinko0825/recipe-site/pkg/recipe"
)

const (
	// DefaultRedisKey is where the recipe list is stored.
	DefaultRedisKey = "recipesite:recipes:list"
	// DefaultRedisGenerationKey counts invalidations.
	DefaultRedisGenerationKey = "recipesite:recipes:gen"
)

// setIfGenerationScript writes the list only while the generation key still
// holds the caller's value. A missing generation key counts as 0.
var setIfGenerationScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then gen = "0" end
if gen ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// RedisCache shares the recipe list between server replicas. Redis errors
// on read degrade to a miss so the store stays the source of truth.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	genKey string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a cache from a redis:// URL.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return NewRedisCacheWithClient(redis.NewClient(opts), ttl), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		key:    DefaultRedisKey,
		genKey: DefaultRedisGenerationKey,
		ttl:    ttl,
		logger: slog.Default().With("component", "cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context) ([]recipe.Recipe, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "redis cache read failed", "error", err)
		}
		return nil, false
	}

	var recipes []recipe.Recipe
	if err := json.Unmarshal(raw, &recipes); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt cache entry", "error", err)
		return nil, false
	}
	return recipes, true
}

func (c *RedisCache) Generation(ctx context.Context) (uint64, error) {
	gen, err := c.client.Get(ctx, c.genKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis cache generation read failed: %w", err)
	}
	return gen, nil
}

// SetIfGeneration stores recipes unless Invalidate ran after gen was read,
// on any replica.
func (c *RedisCache) SetIfGeneration(ctx context.Context, gen uint64, recipes []recipe.Recipe) (bool, error) {
	raw, err := json.Marshal(recipes)
	if err != nil {
		return false, err
	}
	n, err := setIfGenerationScript.Run(ctx, c.client, []string{c.key, c.genKey},
		strconv.FormatUint(gen, 10), raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis cache write failed: %w", err)
	}
	return n == 1, nil
}

// Invalidate drops the list and advances the generation in one transaction.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis cache invalidation failed: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
