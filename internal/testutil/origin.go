package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeOrigin serves static assets from memory and counts hits per path.
type FakeOrigin struct {
	server *httptest.Server

	mu      sync.Mutex
	assets  map[string]string
	status  map[string]int
	hits    map[string]int
	offline bool
}

// NewFakeOrigin starts a FakeOrigin that is shut down when the test completes.
func NewFakeOrigin(t *testing.T, assets map[string]string) *FakeOrigin {
	t.Helper()
	o := &FakeOrigin{
		assets: make(map[string]string),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	for p, body := range assets {
		o.assets[p] = body
	}
	o.server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.server.Close)
	return o
}

// URL returns the origin of the fake.
func (o *FakeOrigin) URL() string { return o.server.URL }

// Transport returns a RoundTripper that fails with ErrOffline while the fake is offline.
func (o *FakeOrigin) Transport() http.RoundTripper {
	return &offlineTransport{next: o.server.Client().Transport, offline: o.Offline}
}

// SetOffline switches the network off or back on.
func (o *FakeOrigin) SetOffline(offline bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offline = offline
}

// Offline reports whether the network is off.
func (o *FakeOrigin) Offline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offline
}

// SetAsset stores or replaces the body served at path.
func (o *FakeOrigin) SetAsset(path, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.assets[path] = body
}

// SetStatus forces the status served at path. Zero clears it.
func (o *FakeOrigin) SetStatus(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status == 0 {
		delete(o.status, path)
		return
	}
	o.status[path] = status
}

// Hits returns how many requests reached path.
func (o *FakeOrigin) Hits(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *FakeOrigin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	body, ok := o.assets[r.URL.Path]
	status, forced := o.status[r.URL.Path]
	o.mu.Unlock()

	if forced {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(body))
}
