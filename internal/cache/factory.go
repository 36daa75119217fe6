package cache

import (
	"fmt"

	"rr-sync/internal/config"
	"rr-sync/internal/sw"
)

// Storage is a sw.CacheStorage that owns resources to release.
type Storage interface {
	sw.CacheStorage
	Close() error
}

// NewStorageFromConfig creates the asset cache storage selected by the cache config type.
func NewStorageFromConfig(cfg config.CacheConfig) (Storage, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStorage(), nil
	case "bolt":
		if cfg.Path == "" {
			return nil, fmt.Errorf("bolt cache requires path to be set")
		}
		s, err := OpenBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
