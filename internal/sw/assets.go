package sw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ErrPrecacheStatus is returned when a manifest URL answers with a non-2xx status.
var ErrPrecacheStatus = errors.New("unexpected precache status")

// AssetConfig describes the cache generation an AssetHandler serves.
type AssetConfig struct {
	// CacheName is the live generation, e.g. "restaurant-reviews-v6".
	CacheName string
	// Prefix is the namespace shared by every generation of this app.
	Prefix string
	// Manifest lists the app shell URLs, relative to Origin.
	Manifest []string
	Origin   *url.URL
}

// AssetHandler serves static assets cache-first and keeps the cache
// generations of the app.
type AssetHandler struct {
	storage CacheStorage
	network http.RoundTripper
	cfg     AssetConfig
	logger  Logger
	clock   Clock
}

// NewAssetHandler creates an AssetHandler. network performs the real fetches.
func NewAssetHandler(storage CacheStorage, network http.RoundTripper, cfg AssetConfig, logger Logger, clock Clock) *AssetHandler {
	return &AssetHandler{
		storage: storage,
		network: network,
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
	}
}

// CacheName returns the live cache generation.
func (h *AssetHandler) CacheName() string { return h.cfg.CacheName }

// Precache fetches every manifest URL and stores them in the live
// generation. Any failure aborts the whole call and nothing is stored.
func (h *AssetHandler) Precache(ctx context.Context) error {
	entries := make([]CachedResponse, len(h.cfg.Manifest))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ref := range h.cfg.Manifest {
		g.Go(func() error {
			entry, err := h.fetchForCache(gctx, ref)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	cache, err := h.storage.Open(ctx, h.cfg.CacheName)
	if err != nil {
		return fmt.Errorf("opening cache %s: %w", h.cfg.CacheName, err)
	}
	if err := cache.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("storing precached assets: %w", err)
	}
	h.logger.Info("precached assets", "cache", h.cfg.CacheName, "count", len(entries))
	return nil
}

func (h *AssetHandler) fetchForCache(ctx context.Context, ref string) (CachedResponse, error) {
	target, err := h.resolve(ref)
	if err != nil {
		return CachedResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CachedResponse{}, fmt.Errorf("building request for %s: %w", target, err)
	}
	resp, err := h.network.RoundTrip(req)
	if err != nil {
		return CachedResponse{}, fmt.Errorf("precaching %s: %w", target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return CachedResponse{}, fmt.Errorf("precaching %s: %w: %d", target, ErrPrecacheStatus, resp.StatusCode)
	}
	key, err := CacheKey(target)
	if err != nil {
		resp.Body.Close()
		return CachedResponse{}, err
	}
	entry, err := captureResponse(resp, key, h.clock.Now())
	if err != nil {
		return CachedResponse{}, fmt.Errorf("precaching %s: %w", target, err)
	}
	return entry, nil
}

func (h *AssetHandler) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing manifest entry %q: %w", ref, err)
	}
	if h.cfg.Origin == nil || u.IsAbs() {
		return u.String(), nil
	}
	return h.cfg.Origin.ResolveReference(u).String(), nil
}

// Serve answers req from the live generation, ignoring the query string,
// and falls back to the network. Successful GET responses fetched from the
// network are stored for next time. Cache errors are logged and treated as misses.
func (h *AssetHandler) Serve(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cacheable := req.Method == http.MethodGet

	var cache Cache
	if cacheable {
		c, err := h.storage.Open(ctx, h.cfg.CacheName)
		if err != nil {
			h.logger.Warn("opening asset cache failed", "cache", h.cfg.CacheName, "error", err)
		} else {
			cache = c
		}
	}

	if cache != nil {
		hit, err := cache.Match(ctx, req.URL.String(), MatchOptions{IgnoreSearch: true})
		if err != nil {
			h.logger.Warn("asset cache lookup failed", "url", req.URL.String(), "error", err)
		} else if hit != nil {
			return hit.Response(req), nil
		}
	}

	resp, err := h.network.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if cache == nil || !storable(resp.StatusCode) {
		return resp, nil
	}

	key, err := CacheKey(req.URL.String())
	if err != nil {
		h.logger.Warn("asset not cached", "url", req.URL.String(), "error", err)
		return resp, nil
	}
	entry, err := captureResponse(resp, key, h.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := cache.Put(ctx, entry); err != nil {
		h.logger.Warn("storing asset failed", "url", key, "error", err)
	}
	return resp, nil
}

// storable reports whether a network response may be cached. Error pages
// would otherwise be served until the next generation, and partial content
// is never complete.
func storable(status int) bool {
	return status >= 200 && status < 300 && status != http.StatusPartialContent
}

// PurgeStale deletes every older generation of this app's cache and returns
// the deleted names. Caches outside the namespace are left alone.
func (h *AssetHandler) PurgeStale(ctx context.Context) ([]string, error) {
	names, err := h.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing caches: %w", err)
	}
	namespace := h.cfg.Prefix + "-"

	var deleted []string
	for _, name := range names {
		if name == h.cfg.CacheName || !strings.HasPrefix(name, namespace) {
			continue
		}
		ok, err := h.storage.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("deleting cache %s: %w", name, err)
		}
		if ok {
			h.logger.Info("deleted stale cache", "cache", name)
			deleted = append(deleted, name)
		}
	}
	return deleted, nil
}
