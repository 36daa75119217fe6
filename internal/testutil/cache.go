package testutil

import (
	"context"
	"errors"
	"sync"

	"rr-sync/internal/cache"
	"rr-sync/internal/sw"
)

// NewTestCacheStorage returns an empty in-memory cache storage.
func NewTestCacheStorage() *cache.MemoryStorage {
	return cache.NewMemoryStorage()
}

// ErrBrokenCache is returned by BrokenCacheStorage.
var ErrBrokenCache = errors.New("cache storage unavailable")

// BrokenCacheStorage fails every operation, or only Put when PutOnly is set.
type BrokenCacheStorage struct {
	mu      sync.Mutex
	PutOnly bool
	inner   *cache.MemoryStorage
}

// NewBrokenCacheStorage returns a storage whose caches always fail.
func NewBrokenCacheStorage(putOnly bool) *BrokenCacheStorage {
	return &BrokenCacheStorage{PutOnly: putOnly, inner: cache.NewMemoryStorage()}
}

func (b *BrokenCacheStorage) Open(ctx context.Context, name string) (sw.Cache, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.PutOnly {
		return nil, ErrBrokenCache
	}
	c, err := b.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return brokenCache{Cache: c}, nil
}

func (b *BrokenCacheStorage) Keys(ctx context.Context) ([]string, error) {
	return b.inner.Keys(ctx)
}

func (b *BrokenCacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	return b.inner.Delete(ctx, name)
}

type brokenCache struct {
	sw.Cache
}

func (brokenCache) Put(context.Context, sw.CachedResponse) error { return ErrBrokenCache }

func (brokenCache) PutAll(context.Context, []sw.CachedResponse) error { return ErrBrokenCache }
