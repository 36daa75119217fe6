package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"rr-sync/internal/sw"
)

var errDeleted = errors.New("cache has been deleted")

// BoltStorage is a bbolt-backed sw.CacheStorage. Each cache generation is a
// top-level bucket; entries are JSON-encoded responses keyed by URL.
type BoltStorage struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the cache file at path.
func OpenBolt(path string) (*BoltStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open returns the named cache, creating its bucket if needed.
func (s *BoltStorage) Open(ctx context.Context, name string) (sw.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return fmt.Errorf("create cache bucket %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltCache{db: s.db, name: []byte(name)}, nil
}

// Keys returns the cache names; bbolt keeps them sorted.
func (s *BoltStorage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	return names, nil
}

// Delete drops the named cache bucket.
func (s *BoltStorage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	deleted := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		if err := tx.DeleteBucket([]byte(name)); err != nil {
			return fmt.Errorf("delete cache bucket %s: %w", name, err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// BoltCache is one generation bucket of a BoltStorage.
type BoltCache struct {
	db   *bbolt.DB
	name []byte
}

// Match looks up rawURL. With IgnoreSearch, entries that differ only in the
// query string sort directly after the bare URL, so a cursor seek finds them.
func (c *BoltCache) Match(ctx context.Context, rawURL string, opts sw.MatchOptions) (*sw.CachedResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := sw.CacheKey(rawURL)
	if err != nil {
		return nil, err
	}
	base, err := sw.StripSearch(rawURL)
	if err != nil {
		return nil, err
	}

	var found *sw.CachedResponse
	err = c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(c.name)
		if bucket == nil {
			return errDeleted
		}
		payload := bucket.Get([]byte(key))
		if payload == nil && opts.IgnoreSearch {
			prefix := []byte(base)
			cur := bucket.Cursor()
			for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
				if stripped, err := sw.StripSearch(string(k)); err == nil && stripped == base {
					payload = v
					break
				}
			}
		}
		if payload == nil {
			return nil
		}
		var entry sw.CachedResponse
		if err := json.Unmarshal(payload, &entry); err != nil {
			return fmt.Errorf("unmarshal cached response: %w", err)
		}
		found = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Put stores entry under its URL.
func (c *BoltCache) Put(ctx context.Context, entry sw.CachedResponse) error {
	return c.PutAll(ctx, []sw.CachedResponse{entry})
}

// PutAll writes every entry in one bbolt transaction.
func (c *BoltCache) PutAll(ctx context.Context, entries []sw.CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys := make([][]byte, len(entries))
	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		key, err := sw.CacheKey(e.URL)
		if err != nil {
			return err
		}
		e.URL = key
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal cached response: %w", err)
		}
		keys[i] = []byte(key)
		payloads[i] = payload
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(c.name)
		if bucket == nil {
			return errDeleted
		}
		for i := range keys {
			if err := bucket.Put(keys[i], payloads[i]); err != nil {
				return fmt.Errorf("put %s: %w", keys[i], err)
			}
		}
		return nil
	})
}

// Compile-time checks that the bolt types implement the sw interfaces
var (
	_ sw.CacheStorage = (*BoltStorage)(nil)
	_ sw.Cache        = (*BoltCache)(nil)
)
