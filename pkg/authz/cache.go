package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DecisionCache stores recent permission decisions keyed by
// (user, permission, scope, resource). Implementations must tolerate
// concurrent use; a miss is always safe, a stale allow is not, so mutating
// code paths call InvalidateUser.
type DecisionCache interface {
	Get(ctx context.Context, key string) (Decision, bool)
	Set(ctx context.Context, key string, d Decision)
	InvalidateUser(ctx context.Context, userID int64)
}

func decisionKey(userID int64, permission string, scope Scope, resourceID int64) string {
	return fmt.Sprintf("authz:%d:%s:%s:%d", userID, permission, scope, resourceID)
}

func userKeyPrefix(userID int64) string {
	return fmt.Sprintf("authz:%d:", userID)
}

// LRUCache is an in-process TTL cache for single-instance deployments.
type LRUCache struct {
	lru *expirable.LRU[string, Decision]
}

// NewLRUCache creates a decision cache holding at most size entries, each
// expiring after ttl.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, Decision](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key string) (Decision, bool) {
	return c.lru.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, d Decision) {
	c.lru.Add(key, d)
}

func (c *LRUCache) InvalidateUser(_ context.Context, userID int64) {
	prefix := userKeyPrefix(userID)
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

// RedisCache shares decisions across instances. Errors degrade to cache
// misses; the checker re-evaluates against the store.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(addr, password string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Close releases the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (Decision, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return Decision{}, false
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Decision{}, false
	}
	return d, true
}

func (c *RedisCache) Set(ctx context.Context, key string, d Decision) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID int64) {
	pattern := userKeyPrefix(userID) + "*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			c.client.Del(ctx, keys...)
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
