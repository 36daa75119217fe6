package sw_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"rr-sync/internal/database"
	"rr-sync/internal/model"
	"rr-sync/internal/sw"
	"rr-sync/internal/testutil"
)

type harness struct {
	api    *testutil.FakeAPI
	store  *database.SQLiteStore
	clock  *testutil.StubClock
	engine *sw.SyncEngine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.FixedClock()
	api := testutil.NewFakeAPI(t)
	store := testutil.NewTestStore(t, clock)
	return &harness{
		api:    api,
		store:  store,
		clock:  clock,
		engine: sw.NewSyncEngine(store, api.Client(t), sw.NewNopLogger(), clock),
	}
}

func (h *harness) seed(restaurants ...model.Restaurant) {
	for _, r := range restaurants {
		h.api.AddRestaurant(r)
	}
}

func sampleRestaurant(id int64, name string) model.Restaurant {
	return model.Restaurant{
		ID:           id,
		Name:         name,
		Neighborhood: "Manhattan",
		Photograph:   "1",
		Address:      "171 E Broadway, New York, NY 10002",
		LatLng:       model.LatLng{Lat: 40.713829, Lng: -73.989667},
		CuisineType:  "Asian",
		IsFavorite:   model.FavoriteFalse,
		CreatedAt:    model.At(time.Date(2017, 10, 25, 19, 0, 0, 0, time.UTC)),
		UpdatedAt:    model.At(time.Date(2017, 10, 25, 19, 0, 0, 0, time.UTC)),
	}
}

func sampleRestaurants() []model.Restaurant {
	return []model.Restaurant{
		sampleRestaurant(1, "Mission Chinese Food"),
		sampleRestaurant(2, "Emily"),
		sampleRestaurant(3, "Kang Ho Dong Baekjeong"),
	}
}

func mustGetRestaurant(t *testing.T, store sw.Store, id int64) *model.Restaurant {
	t.Helper()
	r, err := store.GetRestaurant(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRestaurant(%d) error = %v", id, err)
	}
	if r == nil {
		t.Fatalf("GetRestaurant(%d) = nil, want a stored restaurant", id)
	}
	return r
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

// staleListStore returns a fixed pending favorite listing, as if it had
// been read before another writer changed the queue.
type staleListStore struct {
	sw.Store
	favorites []model.PendingFavorite
}

func (s *staleListStore) ListPendingFavorites(context.Context) ([]model.PendingFavorite, error) {
	return s.favorites, nil
}

// cancelingAPI cancels the caller's context while a favorite PUT is in
// flight, like a browser tab closed mid-request.
type cancelingAPI struct {
	sw.API
	cancel context.CancelFunc
}

func (a *cancelingAPI) SetFavorite(ctx context.Context, _ int64, _ bool) (*model.Restaurant, error) {
	a.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

// gatedAPI holds the restaurant listing open until release is closed.
type gatedAPI struct {
	sw.API
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedAPI(api sw.API) *gatedAPI {
	return &gatedAPI{API: api, entered: make(chan struct{}), release: make(chan struct{})}
}

func (a *gatedAPI) Restaurants(ctx context.Context) ([]model.Restaurant, error) {
	a.once.Do(func() { close(a.entered) })
	<-a.release
	return a.API.Restaurants(ctx)
}

var errDiskFull = errors.New("disk full")

// failingFavoriteStore rejects every local favorite write.
type failingFavoriteStore struct {
	sw.Store
}

func (s *failingFavoriteStore) SetFavoriteLocal(context.Context, int64, bool) (int64, error) {
	return 0, errDiskFull
}
