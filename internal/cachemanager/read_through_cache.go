package cachemanager

import (
	"context"
	"sync"
	"time"
)

// ReadThroughCache loads missing entries through fn and caches the result.
// Concurrent misses on the same key share one load.
type ReadThroughCache[V any] struct {
	cache           Cache[V]
	fn              func(ctx context.Context, key string) (V, error)
	shouldSkipCache bool

	mu       sync.Mutex
	inflight map[string]*load[V]
}

type load[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// NewReadThroughCache wraps cache with loader fn. With shouldSkipCache every
// Get calls fn directly.
func NewReadThroughCache[V any](
	cache Cache[V],
	fn func(ctx context.Context, key string) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[V] {
	return &ReadThroughCache[V]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
		inflight:        make(map[string]*load[V]),
	}
}

// Get returns the cached entry for key or loads it.
func (r *ReadThroughCache[V]) Get(ctx context.Context, key string, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, key)
	}
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}
	return r.load(ctx, key, ttl)
}

// GetWithRefresh is Get, resetting the ttl of a cached entry.
func (r *ReadThroughCache[V]) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, key)
	}
	if value, ok := r.cache.GetWithRefresh(ctx, key, ttl); ok {
		return value, nil
	}
	return r.load(ctx, key, ttl)
}

func (r *ReadThroughCache[V]) load(ctx context.Context, key string, ttl time.Duration) (V, error) {
	r.mu.Lock()
	if l, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-l.done:
			return l.value, l.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	l := &load[V]{done: make(chan struct{})}
	r.inflight[key] = l
	r.mu.Unlock()

	l.value, l.err = r.fn(ctx, key)
	if l.err == nil {
		r.cache.Set(ctx, key, l.value, ttl)
	}

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
	close(l.done)

	return l.value, l.err
}
