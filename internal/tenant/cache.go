package tenant

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache stores organisation snapshots in Redis so multiple gateway
// instances share one view of a tenant.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed snapshot cache.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "gateway:org:"}
}

// Get returns a cached organisation snapshot.
func (c *RedisCache) Get(ctx context.Context, id string) (*Organisation, bool) {
	data, err := c.rdb.Get(ctx, c.prefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	org, err := UnmarshalSnapshot(data)
	if err != nil {
		return nil, false
	}
	return org, true
}

// Set caches an organisation snapshot for ttl.
func (c *RedisCache) Set(ctx context.Context, org *Organisation, ttl time.Duration) {
	data, err := MarshalSnapshot(org)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.prefix+org.ID, data, ttl).Err()
}

// Delete removes a cached snapshot.
func (c *RedisCache) Delete(ctx context.Context, id string) {
	_ = c.rdb.Del(ctx, c.prefix+id).Err()
}
