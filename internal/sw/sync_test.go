package sw_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rr-sync/internal/model"
	"rr-sync/internal/sw"
)

func TestSyncEngine_FetchRestaurants(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches once and serves the store afterwards", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)

		first, err := h.engine.FetchRestaurants(ctx)
		if err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}
		second, err := h.engine.FetchRestaurants(ctx)
		if err != nil {
			t.Fatalf("second FetchRestaurants() error = %v", err)
		}

		if len(first) != 3 || len(second) != 3 {
			t.Fatalf("got %d then %d restaurants, want 3 both times", len(first), len(second))
		}
		if got := h.api.Requests("GET /restaurants"); got != 1 {
			t.Errorf("network requests = %d, want 1", got)
		}
		stored, err := h.store.ListRestaurants(ctx)
		if err != nil {
			t.Fatalf("ListRestaurants() error = %v", err)
		}
		if len(stored) != 3 {
			t.Errorf("stored %d restaurants, want 3", len(stored))
		}
	})

	t.Run("returns empty when offline with an empty store", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		h.api.SetOffline(true)

		got, err := h.engine.FetchRestaurants(ctx)
		if err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("FetchRestaurants() = %d restaurants, want none", len(got))
		}
	})

	t.Run("serves the store when offline", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		if _, err := h.engine.FetchRestaurants(ctx); err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}
		h.api.SetOffline(true)

		got, err := h.engine.FetchRestaurants(ctx)
		if err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}
		if len(got) != 3 {
			t.Errorf("FetchRestaurants() = %d restaurants, want 3", len(got))
		}
	})

	t.Run("concurrent first fetches store each record once", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.engine.FetchRestaurants(ctx); err != nil {
					t.Errorf("FetchRestaurants() error = %v", err)
				}
			}()
		}
		wg.Wait()

		stored, err := h.store.ListRestaurants(ctx)
		if err != nil {
			t.Fatalf("ListRestaurants() error = %v", err)
		}
		if len(stored) != 3 {
			t.Errorf("stored %d restaurants, want 3", len(stored))
		}
	})

	t.Run("returns the context error when cancelled", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := h.engine.FetchRestaurants(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("FetchRestaurants() error = %v, want context.Canceled", err)
		}
	})

	t.Run("a cancelled caller does not fail others sharing its fetch", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		api := newGatedAPI(h.api.Client(t))
		engine := sw.NewSyncEngine(h.store, api, sw.NewNopLogger(), h.clock)

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		firstErr := make(chan error, 1)
		go func() {
			_, err := engine.FetchRestaurants(cctx)
			firstErr <- err
		}()
		<-api.entered

		type result struct {
			restaurants []model.Restaurant
			err         error
		}
		second := make(chan result, 1)
		go func() {
			got, err := engine.FetchRestaurants(ctx)
			second <- result{got, err}
		}()
		// Give the second caller time to join the fetch in flight.
		time.Sleep(50 * time.Millisecond)

		cancel()
		if err := <-firstErr; !errors.Is(err, context.Canceled) {
			t.Errorf("first FetchRestaurants() error = %v, want context.Canceled", err)
		}
		close(api.release)

		res := <-second
		if res.err != nil {
			t.Fatalf("second FetchRestaurants() error = %v", res.err)
		}
		if len(res.restaurants) != 3 {
			t.Errorf("second FetchRestaurants() = %d restaurants, want 3", len(res.restaurants))
		}
		if got := h.api.Requests("GET /restaurants"); got != 1 {
			t.Errorf("network requests = %d, want 1", got)
		}
	})
}

func TestSyncEngine_FetchRestaurant(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through and stores the record", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)

		got, err := h.engine.FetchRestaurant(ctx, 2)
		if err != nil {
			t.Fatalf("FetchRestaurant() error = %v", err)
		}
		if got == nil || got.Name != "Emily" {
			t.Fatalf("FetchRestaurant() = %+v, want Emily", got)
		}
		mustGetRestaurant(t, h.store, 2)

		if _, err := h.engine.FetchRestaurant(ctx, 2); err != nil {
			t.Fatalf("second FetchRestaurant() error = %v", err)
		}
		if n := h.api.Requests("GET /restaurants/{id}"); n != 1 {
			t.Errorf("network requests = %d, want 1", n)
		}
	})

	t.Run("returns nil for an unknown restaurant", func(t *testing.T) {
		h := newHarness(t)

		got, err := h.engine.FetchRestaurant(ctx, 42)
		if err != nil {
			t.Fatalf("FetchRestaurant() error = %v", err)
		}
		if got != nil {
			t.Errorf("FetchRestaurant() = %+v, want nil", got)
		}
	})

	t.Run("keeps a pending local favorite over the server value", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		if _, err := h.engine.FetchRestaurants(ctx); err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}

		h.api.SetOffline(true)
		res, err := h.engine.UpdateFavorite(ctx, 1, true)
		if err != nil {
			t.Fatalf("UpdateFavorite() error = %v", err)
		}
		if res.Status != sw.Pending {
			t.Fatalf("UpdateFavorite() status = %s, want pending", res.Status)
		}

		// The server still reports false; a refresh must not lose the local write.
		if err := h.store.UpsertRestaurants(ctx, []model.Restaurant{sampleRestaurant(1, "Mission Chinese Food")}); err != nil {
			t.Fatalf("UpsertRestaurants() error = %v", err)
		}
		got := mustGetRestaurant(t, h.store, 1)
		if got.IsFavorite != model.FavoriteTrue || got.FavoriteState != model.PendingLocal {
			t.Errorf("restaurant favorite = %s/%s, want true/pending_local", got.IsFavorite, got.FavoriteState)
		}
	})
}

func TestSyncEngine_UpdateFavorite(t *testing.T) {
	ctx := context.Background()

	t.Run("online write is accepted and confirmed", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		if _, err := h.engine.FetchRestaurants(ctx); err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}

		res, err := h.engine.UpdateFavorite(ctx, 1, true)
		if err != nil {
			t.Fatalf("UpdateFavorite() error = %v", err)
		}
		if res.Status != sw.Accepted {
			t.Errorf("status = %s, want accepted", res.Status)
		}
		if res.Seq <= 0 {
			t.Errorf("seq = %d, want positive", res.Seq)
		}

		got := mustGetRestaurant(t, h.store, 1)
		if got.IsFavorite != model.FavoriteTrue || got.FavoriteState != model.Confirmed {
			t.Errorf("restaurant favorite = %s/%s, want true/confirmed", got.IsFavorite, got.FavoriteState)
		}
		pending, err := h.store.ListPendingFavorites(ctx)
		if err != nil {
			t.Fatalf("ListPendingFavorites() error = %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("pending favorites = %d, want 0", len(pending))
		}
		server, _ := h.api.Restaurant(1)
		if server.IsFavorite != model.FavoriteTrue {
			t.Errorf("server favorite = %s, want true", server.IsFavorite)
		}
	})

	t.Run("offline writes coalesce into one pending favorite", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		if _, err := h.engine.FetchRestaurants(ctx); err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}
		h.api.SetOffline(true)

		var last sw.FavoriteResult
		for _, v := range []bool{true, false, true} {
			res, err := h.engine.UpdateFavorite(ctx, 1, v)
			if err != nil {
				t.Fatalf("UpdateFavorite(%v) error = %v", v, err)
			}
			if res.Status != sw.Pending {
				t.Fatalf("UpdateFavorite(%v) status = %s, want pending", v, res.Status)
			}
			if res.Seq <= last.Seq {
				t.Errorf("seq %d did not increase past %d", res.Seq, last.Seq)
			}
			last = res
		}

		pending, err := h.store.ListPendingFavorites(ctx)
		if err != nil {
			t.Fatalf("ListPendingFavorites() error = %v", err)
		}
		if len(pending) != 1 {
			t.Fatalf("pending favorites = %d, want 1", len(pending))
		}
		if !pending[0].IsFavorite || pending[0].Seq != last.Seq {
			t.Errorf("pending = %+v, want is_favorite=true seq=%d", pending[0], last.Seq)
		}
		got := mustGetRestaurant(t, h.store, 1)
		if got.IsFavorite != model.FavoriteTrue || got.FavoriteState != model.PendingLocal {
			t.Errorf("restaurant favorite = %s/%s, want true/pending_local", got.IsFavorite, got.FavoriteState)
		}
	})

	t.Run("pending favorite is applied when the restaurant is first fetched", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		h.api.SetOffline(true)

		res, err := h.engine.UpdateFavorite(ctx, 2, true)
		if err != nil {
			t.Fatalf("UpdateFavorite() error = %v", err)
		}
		if res.Status != sw.Pending || res.Restaurant != nil {
			t.Fatalf("UpdateFavorite() = %+v, want pending without a stored restaurant", res)
		}

		h.api.SetOffline(false)
		got, err := h.engine.FetchRestaurant(ctx, 2)
		if err != nil {
			t.Fatalf("FetchRestaurant() error = %v", err)
		}
		if got == nil || got.IsFavorite != model.FavoriteTrue || got.FavoriteState != model.PendingLocal {
			t.Errorf("FetchRestaurant() = %+v, want a pending true favorite", got)
		}
	})

	t.Run("canceled request still leaves the write queued", func(t *testing.T) {
		h := newHarness(t)
		h.seed(sampleRestaurants()...)
		if _, err := h.engine.FetchRestaurants(ctx); err != nil {
			t.Fatalf("FetchRestaurants() error = %v", err)
		}
		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		api := &cancelingAPI{API: h.api.Client(t), cancel: cancel}
		engine := sw.NewSyncEngine(h.store, api, sw.NewNopLogger(), h.clock)

		res, err := engine.UpdateFavorite(reqCtx, 1, true)
		if err != nil {
			t.Fatalf("UpdateFavorite() error = %v", err)
		}
		if res.Status != sw.Pending {
			t.Fatalf("status = %s, want pending", res.Status)
		}

		pending, err := h.store.GetPendingFavorite(ctx, 1)
		if err != nil {
			t.Fatalf("GetPendingFavorite() error = %v", err)
		}
		if pending == nil || !pending.IsFavorite || pending.Seq != res.Seq {
			t.Fatalf("pending = %+v, want is_favorite=true seq=%d", pending, res.Seq)
		}
		got := mustGetRestaurant(t, h.store, 1)
		if got.IsFavorite != model.FavoriteTrue || got.FavoriteState != model.PendingLocal {
			t.Errorf("restaurant favorite = %s/%s, want true/pending_local", got.IsFavorite, got.FavoriteState)
		}

		report, err := newReplayer(h.engine).RunCycle(ctx)
		if err != nil {
			t.Fatalf("RunCycle() error = %v", err)
		}
		if report.Replayed != 1 {
			t.Errorf("report = %+v, want the queued favorite replayed", report)
		}
		if server, _ := h.api.Restaurant(1); server.IsFavorite != model.FavoriteTrue {
			t.Errorf("server favorite = %s, want true", server.IsFavorite)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		tests := []struct {
			name       string
			offline    bool
			wantErr    bool
			wantStatus sw.Outcome
		}{
			{name: "offline write is reported lost", offline: true, wantErr: true},
			{name: "online write is still accepted", wantStatus: sw.Accepted},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				h.seed(sampleRestaurants()...)
				h.api.SetOffline(tt.offline)
				engine := sw.NewSyncEngine(&failingFavoriteStore{Store: h.store}, h.api.Client(t), sw.NewNopLogger(), h.clock)

				res, err := engine.UpdateFavorite(ctx, 1, true)
				if tt.wantErr {
					if !errors.Is(err, errDiskFull) {
						t.Fatalf("UpdateFavorite() error = %v, want errDiskFull", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("UpdateFavorite() error = %v", err)
				}
				if res.Status != tt.wantStatus || res.Seq != 0 {
					t.Errorf("UpdateFavorite() = %s seq %d, want %s seq 0", res.Status, res.Seq, tt.wantStatus)
				}
				pending, err := h.store.ListPendingFavorites(ctx)
				if err != nil {
					t.Fatalf("ListPendingFavorites() error = %v", err)
				}
				if len(pending) != 0 {
					t.Errorf("pending favorites = %d, want 0", len(pending))
				}
			})
		}
	})

	t.Run("rejects a non-positive id", func(t *testing.T) {
		h := newHarness(t)
		if _, err := h.engine.UpdateFavorite(ctx, 0, true); !errors.Is(err, sw.ErrInvalidRestaurant) {
			t.Errorf("UpdateFavorite(0) error = %v, want ErrInvalidRestaurant", err)
		}
	})
}

func TestSyncEngine_AddReview(t *testing.T) {
	ctx := context.Background()
	input := model.ReviewInput{RestaurantID: 1, Name: "Steve", Rating: 4, Comments: "Great dumplings"}

	t.Run("online review is stored under its server id", func(t *testing.T) {
		h := newHarness(t)

		res, err := h.engine.AddReview(ctx, input)
		if err != nil {
			t.Fatalf("AddReview() error = %v", err)
		}
		if res.Status != sw.Accepted || res.Review.ID <= 0 || res.Review.Pending() {
			t.Fatalf("AddReview() = %+v, want an accepted server review", res)
		}
		stored, err := h.store.ListReviewsByRestaurant(ctx, 1)
		if err != nil {
			t.Fatalf("ListReviewsByRestaurant() error = %v", err)
		}
		if len(stored) != 1 || stored[0].ID != res.Review.ID {
			t.Errorf("stored reviews = %+v, want the server review", stored)
		}
	})

	t.Run("offline reviews get unique placeholders", func(t *testing.T) {
		h := newHarness(t)
		h.api.SetOffline(true)

		first, err := h.engine.AddReview(ctx, input)
		if err != nil {
			t.Fatalf("AddReview() error = %v", err)
		}
		second, err := h.engine.AddReview(ctx, input)
		if err != nil {
			t.Fatalf("second AddReview() error = %v", err)
		}

		for _, res := range []sw.ReviewResult{first, second} {
			if res.Status != sw.Pending || !res.Review.Pending() || res.Review.ID != 0 {
				t.Errorf("AddReview() = %+v, want a pending placeholder review", res)
			}
		}
		if first.Review.PlaceholderID == second.Review.PlaceholderID {
			t.Errorf("placeholder ids collide: %q", first.Review.PlaceholderID)
		}

		got, err := h.engine.FetchReviewsForRestaurant(ctx, 1)
		if err != nil {
			t.Fatalf("FetchReviewsForRestaurant() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("FetchReviewsForRestaurant() = %d reviews, want the 2 pending ones", len(got))
		}
	})

	t.Run("invalid reviews are rejected", func(t *testing.T) {
		h := newHarness(t)
		tests := []struct {
			name  string
			input model.ReviewInput
		}{
			{name: "missing restaurant", input: model.ReviewInput{Name: "x", Rating: 3}},
			{name: "rating too high", input: model.ReviewInput{RestaurantID: 1, Rating: 6}},
			{name: "negative rating", input: model.ReviewInput{RestaurantID: 1, Rating: -1}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := h.engine.AddReview(ctx, tt.input); !errors.Is(err, sw.ErrInvalidReview) {
					t.Errorf("AddReview() error = %v, want ErrInvalidReview", err)
				}
			})
		}
		if n := h.api.Requests("POST /reviews"); n != 0 {
			t.Errorf("network requests = %d, want 0", n)
		}
	})
}

func TestSyncEngine_FetchReviews(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through per restaurant", func(t *testing.T) {
		h := newHarness(t)
		h.api.AddReview(model.Review{RestaurantID: 1, Name: "Steve", Rating: 4})
		h.api.AddReview(model.Review{RestaurantID: 1, Name: "Morgan", Rating: 5})
		h.api.AddReview(model.Review{RestaurantID: 2, Name: "Jordan", Rating: 2})

		got, err := h.engine.FetchReviewsForRestaurant(ctx, 1)
		if err != nil {
			t.Fatalf("FetchReviewsForRestaurant() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("FetchReviewsForRestaurant() = %d reviews, want 2", len(got))
		}
		for _, r := range got {
			if r.State != model.Confirmed || r.ID <= 0 {
				t.Errorf("review %+v is not a confirmed server review", r)
			}
		}

		h.api.SetOffline(true)
		again, err := h.engine.FetchReviewsForRestaurant(ctx, 1)
		if err != nil {
			t.Fatalf("offline FetchReviewsForRestaurant() error = %v", err)
		}
		if len(again) != 2 {
			t.Errorf("offline FetchReviewsForRestaurant() = %d reviews, want 2", len(again))
		}
	})

	t.Run("all reviews", func(t *testing.T) {
		h := newHarness(t)
		h.api.AddReview(model.Review{RestaurantID: 1, Name: "Steve", Rating: 4})
		h.api.AddReview(model.Review{RestaurantID: 2, Name: "Jordan", Rating: 2})

		got, err := h.engine.FetchReviews(ctx)
		if err != nil {
			t.Fatalf("FetchReviews() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("FetchReviews() = %d reviews, want 2", len(got))
		}
	})

	t.Run("offline with an empty store is empty", func(t *testing.T) {
		h := newHarness(t)
		h.api.SetOffline(true)

		got, err := h.engine.FetchReviews(ctx)
		if err != nil {
			t.Fatalf("FetchReviews() error = %v", err)
		}
		if got != nil {
			t.Errorf("FetchReviews() = %+v, want nil", got)
		}
	})
}
