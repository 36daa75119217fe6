package sw

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CacheStorage holds the named asset caches, one per cache generation.
type CacheStorage interface {
	// Open returns the cache with the given name, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)

	// Keys returns the names of all caches, sorted.
	Keys(ctx context.Context) ([]string, error)

	// Delete removes a cache and everything in it.
	// Returns false if no cache with that name existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// Cache is a single generation of stored responses keyed by request URL.
type Cache interface {
	// Match returns the response stored for rawURL, or (nil, nil) on a miss.
	Match(ctx context.Context, rawURL string, opts MatchOptions) (*CachedResponse, error)

	// Put stores a response, replacing any previous entry for the same URL.
	Put(ctx context.Context, entry CachedResponse) error

	// PutAll stores all entries atomically: either every entry is written or none.
	PutAll(ctx context.Context, entries []CachedResponse) error
}

// MatchOptions adjusts how Match compares URLs.
type MatchOptions struct {
	// IgnoreSearch ignores the query string of both the stored and the requested URL.
	IgnoreSearch bool
}

// CachedResponse is a response body and its metadata as stored in a Cache.
type CachedResponse struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// Response rebuilds an *http.Response for req from the stored entry.
func (c *CachedResponse) Response(req *http.Request) *http.Response {
	header := c.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.StatusCode, http.StatusText(c.StatusCode)),
		StatusCode:    c.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}

// CacheKey normalizes a URL into the key a Cache stores it under.
// Fragments never take part in matching.
func CacheKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing cache url: %w", err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// StripSearch returns the cache key of rawURL without its query string.
func StripSearch(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing cache url: %w", err)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String(), nil
}

// captureResponse drains resp into a CachedResponse and replaces its body
// so the caller can still read it.
func captureResponse(resp *http.Response, key string, now time.Time) (CachedResponse, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return CachedResponse{}, fmt.Errorf("reading response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return CachedResponse{
		URL:        key,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   now,
	}, nil
}
