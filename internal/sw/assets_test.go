package sw_test

import (
	"context"
	"io"
	"net/http"
	"slices"
	"testing"

	"rr-sync/internal/sw"
	"rr-sync/internal/testutil"
)

var shell = map[string]string{
	"/":                "<html>home</html>",
	"/restaurant.html": "<html>restaurant</html>",
	"/css/styles.css":  "body{}",
	"/js/main.js":      "main()",
}

func newAssetHandler(t *testing.T, storage sw.CacheStorage, origin *testutil.FakeOrigin, cacheName string) *sw.AssetHandler {
	t.Helper()
	return sw.NewAssetHandler(storage, origin.Transport(), sw.AssetConfig{
		CacheName: cacheName,
		Prefix:    "restaurant-reviews",
		Manifest:  []string{"/", "/restaurant.html", "/css/styles.css", "/js/main.js"},
		Origin:    mustParseURL(t, origin.URL()),
	}, sw.NewNopLogger(), testutil.FixedClock())
}

func get(t *testing.T, h *sw.AssetHandler, rawURL string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := h.Serve(req)
	if err != nil {
		t.Fatalf("Serve(%s) error = %v", rawURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, string(body)
}

func TestAssetHandler_Precache(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the whole manifest", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, shell)
		storage := testutil.NewTestCacheStorage()
		h := newAssetHandler(t, storage, origin, "restaurant-reviews-v1")

		if err := h.Precache(ctx); err != nil {
			t.Fatalf("Precache() error = %v", err)
		}

		origin.SetOffline(true)
		for path, want := range shell {
			_, body := get(t, h, origin.URL()+path)
			if body != want {
				t.Errorf("offline %s = %q, want %q", path, body, want)
			}
		}
	})

	t.Run("stores nothing when one asset fails", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, shell)
		origin.SetStatus("/css/styles.css", http.StatusNotFound)
		storage := testutil.NewTestCacheStorage()
		h := newAssetHandler(t, storage, origin, "restaurant-reviews-v1")

		if err := h.Precache(ctx); err == nil {
			t.Fatal("Precache() expected error for a missing asset")
		}

		cache, err := storage.Open(ctx, "restaurant-reviews-v1")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		for path := range shell {
			hit, err := cache.Match(ctx, origin.URL()+path, sw.MatchOptions{})
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			if hit != nil {
				t.Errorf("%s was cached by a failed precache", path)
			}
		}
	})

	t.Run("fails when offline", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, shell)
		origin.SetOffline(true)
		h := newAssetHandler(t, testutil.NewTestCacheStorage(), origin, "restaurant-reviews-v1")

		if err := h.Precache(ctx); err == nil {
			t.Error("Precache() expected error while offline")
		}
	})
}

func TestAssetHandler_Serve(t *testing.T) {
	t.Run("cache hit ignores the query string", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, shell)
		h := newAssetHandler(t, testutil.NewTestCacheStorage(), origin, "restaurant-reviews-v1")
		if err := h.Precache(context.Background()); err != nil {
			t.Fatalf("Precache() error = %v", err)
		}
		before := origin.Hits("/restaurant.html")

		_, body := get(t, h, origin.URL()+"/restaurant.html?id=3")
		if body != shell["/restaurant.html"] {
			t.Errorf("body = %q, want the cached page", body)
		}
		if origin.Hits("/restaurant.html") != before {
			t.Error("cache hit reached the network")
		}
	})

	t.Run("miss is fetched and stored", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, map[string]string{"/img/1.jpg": "jpeg"})
		h := newAssetHandler(t, testutil.NewTestCacheStorage(), origin, "restaurant-reviews-v1")

		resp, body := get(t, h, origin.URL()+"/img/1.jpg")
		if resp.StatusCode != http.StatusOK || body != "jpeg" {
			t.Fatalf("Serve() = %d %q, want 200 jpeg", resp.StatusCode, body)
		}

		origin.SetOffline(true)
		_, body = get(t, h, origin.URL()+"/img/1.jpg")
		if body != "jpeg" {
			t.Errorf("offline body = %q, want the stored copy", body)
		}
		if origin.Hits("/img/1.jpg") != 1 {
			t.Errorf("network hits = %d, want 1", origin.Hits("/img/1.jpg"))
		}
	})

	t.Run("non-GET responses are not stored", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, map[string]string{"/form": "ok"})
		h := newAssetHandler(t, testutil.NewTestCacheStorage(), origin, "restaurant-reviews-v1")

		req, _ := http.NewRequest(http.MethodPost, origin.URL()+"/form", nil)
		resp, err := h.Serve(req)
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
		resp.Body.Close()

		origin.SetOffline(true)
		req, _ = http.NewRequest(http.MethodGet, origin.URL()+"/form", nil)
		if _, err := h.Serve(req); err == nil {
			t.Error("Serve() of an unstored asset offline expected error")
		}
	})

	t.Run("error responses are not stored", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
		}{
			{name: "not found", status: http.StatusNotFound},
			{name: "server error", status: http.StatusInternalServerError},
			{name: "bad gateway", status: http.StatusBadGateway},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				origin := testutil.NewFakeOrigin(t, map[string]string{"/img/2.jpg": "jpeg"})
				origin.SetStatus("/img/2.jpg", tt.status)
				h := newAssetHandler(t, testutil.NewTestCacheStorage(), origin, "restaurant-reviews-v1")

				resp, _ := get(t, h, origin.URL()+"/img/2.jpg")
				if resp.StatusCode != tt.status {
					t.Fatalf("Serve() status = %d, want %d", resp.StatusCode, tt.status)
				}

				origin.SetStatus("/img/2.jpg", 0)
				resp, body := get(t, h, origin.URL()+"/img/2.jpg")
				if resp.StatusCode != http.StatusOK || body != "jpeg" {
					t.Errorf("Serve() after recovery = %d %q, want 200 jpeg", resp.StatusCode, body)
				}
				if origin.Hits("/img/2.jpg") != 2 {
					t.Errorf("network hits = %d, want 2", origin.Hits("/img/2.jpg"))
				}

				origin.SetOffline(true)
				if _, body := get(t, h, origin.URL()+"/img/2.jpg"); body != "jpeg" {
					t.Errorf("offline body = %q, want the stored copy", body)
				}
			})
		}
	})

	t.Run("cache errors fall back to the network", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, shell)
		for _, putOnly := range []bool{false, true} {
			h := newAssetHandler(t, testutil.NewBrokenCacheStorage(putOnly), origin, "restaurant-reviews-v1")
			resp, body := get(t, h, origin.URL()+"/js/main.js")
			if resp.StatusCode != http.StatusOK || body != "main()" {
				t.Errorf("putOnly=%v: Serve() = %d %q, want 200 main()", putOnly, resp.StatusCode, body)
			}
		}
	})

	t.Run("offline miss is an error", func(t *testing.T) {
		origin := testutil.NewFakeOrigin(t, shell)
		origin.SetOffline(true)
		h := newAssetHandler(t, testutil.NewTestCacheStorage(), origin, "restaurant-reviews-v1")

		req, _ := http.NewRequest(http.MethodGet, origin.URL()+"/js/main.js", nil)
		if _, err := h.Serve(req); err == nil {
			t.Error("Serve() expected error")
		}
	})
}

func TestAssetHandler_PurgeStale(t *testing.T) {
	ctx := context.Background()
	storage := testutil.NewTestCacheStorage()
	for _, name := range []string{"restaurant-reviews-v1", "restaurant-reviews-v2", "restaurant-reviews-v3", "other-app"} {
		if _, err := storage.Open(ctx, name); err != nil {
			t.Fatalf("Open(%s) error = %v", name, err)
		}
	}
	origin := testutil.NewFakeOrigin(t, shell)
	h := newAssetHandler(t, storage, origin, "restaurant-reviews-v3")

	deleted, err := h.PurgeStale(ctx)
	if err != nil {
		t.Fatalf("PurgeStale() error = %v", err)
	}
	if want := []string{"restaurant-reviews-v1", "restaurant-reviews-v2"}; !slices.Equal(deleted, want) {
		t.Errorf("PurgeStale() = %v, want %v", deleted, want)
	}

	keys, err := storage.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if want := []string{"other-app", "restaurant-reviews-v3"}; !slices.Equal(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}
