package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadThroughCache_LoadsOnceThenHits(t *testing.T) {
	ctx := context.Background()
	calls := 0
	loader := func(ctx context.Context, providerID string) (map[string]string, error) {
		calls++
		return map[string]string{"api_key": "sk-" + providerID}, nil
	}
	cache := NewReadThroughCache[string, map[string]string, string](
		NewInMemoryCacheManager[string, map[string]string]("test", DefaultExpiration, DefaultCleanupInterval),
		loader, false)

	first, err := cache.Get(ctx, "cloud.openai", "cloud.openai", time.Minute)
	require.NoError(t, err)
	second, err := cache.Get(ctx, "cloud.openai", "cloud.openai", time.Minute)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, calls, "second read should be served from cache")
}

func TestReadThroughCache_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	loader := func(ctx context.Context, providerID string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("store offline")
		}
		return "value", nil
	}
	cache := NewReadThroughCache[string, string, string](
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval),
		loader, false)

	_, err := cache.Get(ctx, "key", "key", time.Minute)
	require.Error(t, err)

	value, err := cache.Get(ctx, "key", "key", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "value", value)
	require.Equal(t, 2, calls)
}

func TestReadThroughCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	calls := 0
	loader := func(ctx context.Context, providerID string) (int, error) {
		calls++
		return calls, nil
	}
	cache := NewReadThroughCache[string, int, string](
		NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval),
		loader, false)

	_, err := cache.Get(ctx, "key", "key", time.Minute)
	require.NoError(t, err)
	cache.Invalidate(ctx, "key")

	value, err := cache.Get(ctx, "key", "key", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, value, "invalidated key should reload")
}

func TestReadThroughCache_Flush(t *testing.T) {
	ctx := context.Background()
	calls := 0
	loader := func(ctx context.Context, providerID string) (int, error) {
		calls++
		return calls, nil
	}
	cache := NewReadThroughCache[string, int, string](
		NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval),
		loader, false)

	_, err := cache.Get(ctx, "a", "a", time.Minute)
	require.NoError(t, err)
	_, err = cache.Get(ctx, "b", "b", time.Minute)
	require.NoError(t, err)

	cache.Flush(ctx)

	_, err = cache.Get(ctx, "a", "a", time.Minute)
	require.NoError(t, err)
	_, err = cache.Get(ctx, "b", "b", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, calls, "every key should reload after a flush")
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	ctx := context.Background()
	calls := 0
	loader := func(ctx context.Context, providerID string) (int, error) {
		calls++
		return calls, nil
	}
	cache := NewReadThroughCache[string, int, string](
		NewInMemoryCacheManager[string, int]("test", DefaultExpiration, DefaultCleanupInterval),
		loader, true)

	_, err := cache.Get(ctx, "key", "key", time.Minute)
	require.NoError(t, err)
	value, err := cache.Get(ctx, "key", "key", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, value, "skip-cache mode always calls the loader")
}
