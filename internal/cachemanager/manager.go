// Package cachemanager caches live controllers by kind and id.
package cachemanager

import (
	"context"
	"strings"
	"time"
)

const keySeparator = ":"

// Cache is a TTL cache keyed by string.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) []string
	Flush(ctx context.Context) error
}

// Key builds the cache key for a controller.
func Key(kind, id string) string {
	return kind + keySeparator + id
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (kind, id string, ok bool) {
	return strings.Cut(key, keySeparator)
}
