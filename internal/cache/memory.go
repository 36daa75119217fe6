package cache

import (
	"context"
	"sort"
	"sync"

	"rr-sync/internal/sw"
)

// MemoryStorage is an in-memory implementation of sw.CacheStorage.
// It is useful for testing and for running without a cache file.
// This implementation is safe for concurrent use.
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]*MemoryCache
}

// NewMemoryStorage creates an empty in-memory cache storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*MemoryCache)}
}

// Open returns the named cache, creating it if needed.
func (m *MemoryStorage) Open(ctx context.Context, name string) (sw.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[name]
	if !ok {
		c = &MemoryCache{entries: make(map[string]sw.CachedResponse)}
		m.caches[name] = c
	}
	return c, nil
}

// Keys returns the cache names in sorted order.
func (m *MemoryStorage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete drops the named cache.
func (m *MemoryStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[name]
	if !ok {
		return false, nil
	}
	c.mu.Lock()
	c.deleted = true
	c.mu.Unlock()
	delete(m.caches, name)
	return true, nil
}

// Close is a no-op for in-memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}

// MemoryCache is one generation held by a MemoryStorage.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]sw.CachedResponse // cache key -> entry
	deleted bool
}

// Match looks up rawURL; with IgnoreSearch an exact key wins over other
// entries that differ only in their query string.
func (c *MemoryCache) Match(ctx context.Context, rawURL string, opts sw.MatchOptions) (*sw.CachedResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := sw.CacheKey(rawURL)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.deleted {
		return nil, errDeleted
	}

	if entry, ok := c.entries[key]; ok {
		return cloneEntry(entry), nil
	}
	if !opts.IgnoreSearch {
		return nil, nil
	}

	base, err := sw.StripSearch(rawURL)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if stripped, err := sw.StripSearch(k); err == nil && stripped == base {
			return cloneEntry(c.entries[k]), nil
		}
	}
	return nil, nil
}

// Put stores entry under its URL.
func (c *MemoryCache) Put(ctx context.Context, entry sw.CachedResponse) error {
	return c.PutAll(ctx, []sw.CachedResponse{entry})
}

// PutAll stores every entry or, if any URL is invalid, none.
func (c *MemoryCache) PutAll(ctx context.Context, entries []sw.CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keyed := make(map[string]sw.CachedResponse, len(entries))
	for _, e := range entries {
		key, err := sw.CacheKey(e.URL)
		if err != nil {
			return err
		}
		e.URL = key
		keyed[key] = *cloneEntry(e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return errDeleted
	}
	for k, e := range keyed {
		c.entries[k] = e
	}
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneEntry(e sw.CachedResponse) *sw.CachedResponse {
	out := e
	out.Header = e.Header.Clone()
	out.Body = append([]byte(nil), e.Body...)
	return &out
}

// Compile-time checks that the memory types implement the sw interfaces
var (
	_ sw.CacheStorage = (*MemoryStorage)(nil)
	_ sw.Cache        = (*MemoryCache)(nil)
)
