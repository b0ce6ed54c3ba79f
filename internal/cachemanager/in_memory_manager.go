package cachemanager

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zimmed/zimmed-core/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// NoExpiration keeps an entry until it is deleted.
const NoExpiration = gocache.NoExpiration

var _ Cache[string] = (*InMemoryCache[string])(nil)

// InMemoryCache is a go-cache backed Cache.
type InMemoryCache[V any] struct {
	name  string
	cache *gocache.Cache
}

// NewInMemoryCache creates a cache. name only appears in log lines.
// defaultExpiration applies when Set is called with a zero ttl.
func NewInMemoryCache[V any](name string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCache[V] {
	return &InMemoryCache[V]{
		name:  name,
		cache: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// OnEvicted registers fn to run when an entry expires or is deleted.
// Flush does not call it.
func (c *InMemoryCache[V]) OnEvicted(fn func(key string, value V)) {
	c.cache.OnEvicted(func(key string, raw any) {
		v, ok := raw.(V)
		if !ok {
			log.Error(log.CatCache, "wrong type assertion on eviction", "cache", c.name, "key", key)
			return
		}
		fn(key, v)
	})
}

// Get retrieves an entry by key.
func (c *InMemoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(key)
	if !found {
		log.Debug(log.CatCache, "cache miss", "cache", c.name, "key", key)
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.name, "key", key)
		return zeroValue, false
	}

	log.Debug(log.CatCache, "cache hit", "cache", c.name, "key", key)
	return v, true
}

// GetWithRefresh retrieves an entry and, when found, resets its ttl.
func (c *InMemoryCache[V]) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool) {
	value, found := c.Get(ctx, key)
	if !found {
		return value, false
	}
	c.cache.Set(key, value, ttl)
	return value, true
}

// Set stores value under key. A zero ttl uses the default expiration.
func (c *InMemoryCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	c.cache.Set(key, value, ttl)
}

// Delete removes entries, running the eviction hook for each one present.
func (c *InMemoryCache[V]) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.cache.Delete(key)
	}
	return nil
}

// Keys returns the keys of unexpired entries, sorted.
func (c *InMemoryCache[V]) Keys(_ context.Context) []string {
	items := c.cache.Items()
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries, expired ones included until cleanup.
func (c *InMemoryCache[V]) Len() int {
	return c.cache.ItemCount()
}

// Flush removes every entry without running the eviction hook.
func (c *InMemoryCache[V]) Flush(_ context.Context) error {
	c.cache.Flush()
	return nil
}
