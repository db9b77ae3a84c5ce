package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache wraps a loader function with a cache: misses fall through
// to the loader and successful results are written back. Loader errors are
// never cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
}

func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}

// Invalidate evicts the given keys so the next Get reloads.
func (r *ReadThroughCache[K, V, I]) Invalidate(ctx context.Context, keys ...K) {
	if r.shouldSkipCache {
		return
	}
	r.cache.Delete(ctx, keys...)
}

// Flush evicts every cached entry.
func (r *ReadThroughCache[K, V, I]) Flush(ctx context.Context) {
	if r.shouldSkipCache {
		return
	}
	r.cache.Flush(ctx)
}
