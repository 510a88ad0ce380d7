package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coocood/freecache"
	"github.com/golang/glog"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/stored_requests"
)

// NewCache returns an in-memory Cache which enforces a maximum size and TTL.
//
// Requests and Imps are stored in separate caches so that a burst of one type cannot evict the other.
// Accounts share the configured Size.
func NewCache(cfg *config.InMemoryCache) stored_requests.Cache {
	return stored_requests.Cache{
		Requests: NewCacheJSON(cfg.RequestCacheSize, cfg.TTL, "Request"),
		Imps:     NewCacheJSON(cfg.ImpCacheSize, cfg.TTL, "Imp"),
		Accounts: NewCacheJSON(cfg.Size, cfg.TTL, "Account"),
	}
}

// NewCacheJSON returns a single CacheJSON. A size of zero or less makes it unbounded, in which case the
// ttl is ignored.
func NewCacheJSON(size int, ttl int, dataType string) stored_requests.CacheJSON {
	if size <= 0 {
		glog.Infof("Using an unbounded in-memory cache for Stored %s data.", dataType)
		return &unboundedCache{}
	}

	if ttl < 0 {
		ttl = 0
	}
	glog.Infof("Using a Stored %s in-memory cache. Max size: %d bytes. TTL: %d seconds.", dataType, size, ttl)
	return &cache{
		dataType:   dataType,
		cache:      freecache.NewCache(size),
		ttlSeconds: ttl,
	}
}

type cache struct {
	dataType   string
	cache      *freecache.Cache
	ttlSeconds int
}

func (c *cache) Get(ctx context.Context, ids []string) map[string]json.RawMessage {
	data := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		if val, err := c.cache.Get([]byte(id)); err == nil {
			data[id] = val
		} else if err != freecache.ErrNotFound {
			glog.Errorf("unexpected error from freecache: %v", err)
		}
	}
	return data
}

func (c *cache) Save(ctx context.Context, data map[string]json.RawMessage) {
	for id, data := range data {
		if err := c.cache.Set([]byte(id), data, c.ttlSeconds); err != nil {
			glog.Errorf("error saving Stored %s %s to the in-memory cache: %v", c.dataType, id, err)
		}
	}
}

func (c *cache) Invalidate(ctx context.Context, ids []string) {
	for _, id := range ids {
		c.cache.Del([]byte(id))
	}
}

// unboundedCache never evicts. It is only suitable for data sets which are known to be small.
type unboundedCache struct {
	data sync.Map
}

func (c *unboundedCache) Get(ctx context.Context, ids []string) map[string]json.RawMessage {
	data := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		if val, ok := c.data.Load(id); ok {
			data[id] = val.(json.RawMessage)
		}
	}
	return data
}

func (c *unboundedCache) Save(ctx context.Context, data map[string]json.RawMessage) {
	for id, data := range data {
		c.data.Store(id, data)
	}
}

func (c *unboundedCache) Invalidate(ctx context.Context, ids []string) {
	for _, id := range ids {
		c.data.Delete(id)
	}
}
