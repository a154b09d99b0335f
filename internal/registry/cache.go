package registry

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthCache stores probe verdicts so downstream services are not
// hammered on every request.
type HealthCache interface {
	Get(ctx context.Context, service string) (healthy bool, ok bool)
	Set(ctx context.Context, service string, healthy bool, ttl time.Duration)
}

type memoryEntry struct {
	healthy   bool
	expiresAt time.Time
}

// MemoryHealthCache is the in-process HealthCache used when no Redis
// instance is configured.
type MemoryHealthCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryHealthCache() *MemoryHealthCache {
	return &MemoryHealthCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryHealthCache) Get(_ context.Context, service string) (bool, bool) {
	c.mu.RLock()
	entry, ok := c.entries[service]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return false, false
	}
	return entry.healthy, true
}

func (c *MemoryHealthCache) Set(_ context.Context, service string, healthy bool, ttl time.Duration) {
	c.mu.Lock()
	c.entries[service] = memoryEntry{healthy: healthy, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// RedisHealthCache shares probe verdicts across instances.
type RedisHealthCache struct {
	client *redis.Client
}

func NewRedisHealthCache(client *redis.Client) *RedisHealthCache {
	return &RedisHealthCache{client: client}
}

func (c *RedisHealthCache) key(service string) string {
	return "service_health_" + service
}

func (c *RedisHealthCache) Get(ctx context.Context, service string) (bool, bool) {
	val, err := c.client.Get(ctx, c.key(service)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

func (c *RedisHealthCache) Set(ctx context.Context, service string, healthy bool, ttl time.Duration) {
	val := "0"
	if healthy {
		val = "1"
	}
	c.client.Set(ctx, c.key(service), val, ttl)
}
