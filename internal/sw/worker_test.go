package sw_test

import (
	"context"
	"net/http"
	"slices"
	"testing"

	"rr-sync/internal/model"
	"rr-sync/internal/sw"
	"rr-sync/internal/testutil"
)

type workerHarness struct {
	*harness
	origin  *testutil.FakeOrigin
	storage sw.CacheStorage
	worker  *sw.Worker
}

func newWorkerHarness(t *testing.T, cacheName string) *workerHarness {
	t.Helper()
	h := newHarness(t)
	origin := testutil.NewFakeOrigin(t, shell)
	storage := testutil.NewTestCacheStorage()
	assets := newAssetHandler(t, storage, origin, cacheName)
	replayer := newReplayer(h.engine)
	router := sw.NewRouter(sw.RouterConfig{
		AppOrigin: mustParseURL(t, origin.URL()),
		APIOrigin: mustParseURL(t, h.api.URL()),
	}, sw.NewDataHandler(h.engine, sw.NewNopLogger()), assets, origin.Transport(), sw.NewNopLogger(), testutil.NewStubIDGenerator())
	worker := sw.NewWorker(h.store, storage, h.engine, assets, replayer, router, sw.NewNopLogger())
	return &workerHarness{harness: h, origin: origin, storage: storage, worker: worker}
}

func eventKinds(events []model.WorkerEvent) []string {
	var out []string
	for _, ev := range events {
		out = append(out, ev.Kind+":"+ev.Status)
	}
	return out
}

func TestWorker_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("installs and activates", func(t *testing.T) {
		wh := newWorkerHarness(t, "restaurant-reviews-v2")
		if _, err := wh.storage.Open(ctx, "restaurant-reviews-v1"); err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		if err := wh.worker.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		keys, _ := wh.storage.Keys(ctx)
		if !slices.Equal(keys, []string{"restaurant-reviews-v2"}) {
			t.Errorf("caches = %v, want only the live generation", keys)
		}
		events, err := wh.worker.History(ctx, 10)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if got, want := eventKinds(events), []string{"activate:success", "install:success"}; !slices.Equal(got, want) {
			t.Errorf("history = %v, want %v", got, want)
		}
	})

	t.Run("failed install skips activation", func(t *testing.T) {
		wh := newWorkerHarness(t, "restaurant-reviews-v2")
		if _, err := wh.storage.Open(ctx, "restaurant-reviews-v1"); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		wh.origin.SetStatus("/js/main.js", http.StatusInternalServerError)

		if err := wh.worker.Start(ctx); err == nil {
			t.Fatal("Start() expected error")
		}

		keys, _ := wh.storage.Keys(ctx)
		if !slices.Contains(keys, "restaurant-reviews-v1") {
			t.Errorf("caches = %v, old generation was purged", keys)
		}
		events, _ := wh.worker.History(ctx, 10)
		if got, want := eventKinds(events), []string{"install:error"}; !slices.Equal(got, want) {
			t.Errorf("history = %v, want %v", got, want)
		}
	})
}

func TestWorker_ReplayAndStatus(t *testing.T) {
	ctx := context.Background()
	wh := newWorkerHarness(t, "restaurant-reviews-v1")
	wh.api.SetOffline(true)
	if _, err := wh.engine.UpdateFavorite(ctx, 1, true); err != nil {
		t.Fatalf("UpdateFavorite() error = %v", err)
	}
	if _, err := wh.engine.AddReview(ctx, model.ReviewInput{RestaurantID: 1, Name: "Steve", Rating: 3}); err != nil {
		t.Fatalf("AddReview() error = %v", err)
	}

	status, err := wh.worker.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.PendingFavorites != 1 || status.PendingReviews != 1 || status.CacheName != "restaurant-reviews-v1" {
		t.Errorf("Status() = %+v, want 1 pending favorite and review", status)
	}

	wh.seed(sampleRestaurants()...)
	wh.api.SetOffline(false)
	report, err := wh.worker.Replay(ctx)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if report.Replayed != 2 {
		t.Errorf("Replay() = %+v, want 2 replayed", report)
	}

	pending, err := wh.worker.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending.Favorites) != 0 || len(pending.Reviews) != 0 {
		t.Errorf("Pending() = %+v, want empty", pending)
	}
	status, _ = wh.worker.Status(ctx)
	if status.ReplayCycles != 1 {
		t.Errorf("ReplayCycles = %d, want 1", status.ReplayCycles)
	}
	events, _ := wh.worker.History(ctx, 1)
	if got := eventKinds(events); !slices.Equal(got, []string{"replay:success"}) {
		t.Errorf("history = %v, want the replay", got)
	}
}
