package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// Cache is a stored_requests.CacheJSON shared by every instance pointed at the same redis server.
// Keys are namespaced by prefix so that requests, imps and accounts can share one database.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache builds a Cache over client. A ttl of zero or less stores entries without expiration.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) Get(ctx context.Context, ids []string) map[string]json.RawMessage {
	data := make(map[string]json.RawMessage, len(ids))
	if len(ids) == 0 {
		return data
	}

	values, err := c.client.MGet(ctx, c.keys(ids)...).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			glog.Errorf("error reading %d ids from the redis cache: %v", len(ids), err)
		}
		return data
	}

	for i, value := range values {
		if s, ok := value.(string); ok {
			data[ids[i]] = json.RawMessage(s)
		}
	}
	return data
}

func (c *Cache) Save(ctx context.Context, data map[string]json.RawMessage) {
	if len(data) == 0 {
		return
	}

	pipe := c.client.Pipeline()
	for id, value := range data {
		pipe.Set(ctx, c.key(id), []byte(value), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		glog.Errorf("error saving %d entries to the redis cache: %v", len(data), err)
	}
}

func (c *Cache) Invalidate(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := c.client.Del(ctx, c.keys(ids)...).Err(); err != nil {
		glog.Errorf("error invalidating %d ids in the redis cache: %v", len(ids), err)
	}
}

func (c *Cache) key(id string) string {
	return c.prefix + id
}

func (c *Cache) keys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	return keys
}
