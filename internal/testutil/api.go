package testutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"rr-sync/internal/model"
	"rr-sync/internal/network"
)

// ErrOffline is the transport error returned while a fake is offline.
var ErrOffline = errors.New("network offline")

// FakeAPI is an in-process Data API backed by httptest. It can be switched
// offline, counts requests per route and can fail chosen writes.
type FakeAPI struct {
	server *httptest.Server

	mu             sync.Mutex
	restaurants    map[int64]model.Restaurant
	reviews        []model.Review
	nextReviewID   int64
	offline        bool
	requests       map[string]int
	failFavorites  map[int64]bool
	failReviewsFor map[int64]bool
	onFavorite     func(id int64, value bool)
	favoriteLog    []FavoriteCall
}

// FavoriteCall records one PUT the fake accepted.
type FavoriteCall struct {
	RestaurantID int64
	IsFavorite   bool
}

// NewFakeAPI starts a FakeAPI that is shut down when the test completes.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{
		restaurants:    make(map[int64]model.Restaurant),
		nextReviewID:   1,
		requests:       make(map[string]int),
		failFavorites:  make(map[int64]bool),
		failReviewsFor: make(map[int64]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /restaurants", f.listRestaurants)
	mux.HandleFunc("GET /restaurants/{id}", f.getRestaurant)
	mux.HandleFunc("PUT /restaurants/{id}/", f.putFavorite)
	mux.HandleFunc("PUT /restaurants/{id}", f.putFavorite)
	mux.HandleFunc("GET /reviews/", f.listReviews)
	mux.HandleFunc("POST /reviews/", f.createReview)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the origin of the fake, e.g. "http://127.0.0.1:53211".
func (f *FakeAPI) URL() string { return f.server.URL }

// Transport returns a RoundTripper that fails with ErrOffline while the fake is offline.
func (f *FakeAPI) Transport() http.RoundTripper {
	return &offlineTransport{next: f.server.Client().Transport, offline: f.Offline}
}

// Client returns a Data API client wired to the fake.
func (f *FakeAPI) Client(t *testing.T) *network.Client {
	t.Helper()
	c, err := network.NewClient(f.URL(), &http.Client{Transport: f.Transport()})
	if err != nil {
		t.Fatalf("creating api client: %v", err)
	}
	return c
}

// SetOffline switches the network off or back on.
func (f *FakeAPI) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// Offline reports whether the network is off.
func (f *FakeAPI) Offline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offline
}

// AddRestaurant stores or replaces a server restaurant.
func (f *FakeAPI) AddRestaurant(r model.Restaurant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restaurants[r.ID] = r
}

// Restaurant returns the server copy of a restaurant.
func (f *FakeAPI) Restaurant(id int64) (model.Restaurant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.restaurants[id]
	return r, ok
}

// AddReview stores a server review, assigning an id when it has none.
func (f *FakeAPI) AddReview(r model.Review) model.Review {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == 0 {
		r.ID = f.nextReviewID
	}
	if r.ID >= f.nextReviewID {
		f.nextReviewID = r.ID + 1
	}
	r.State = model.Confirmed
	f.reviews = append(f.reviews, r)
	return r
}

// Reviews returns every server review.
func (f *FakeAPI) Reviews() []model.Review {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Review(nil), f.reviews...)
}

// Requests returns how many requests hit a route, e.g. "GET /restaurants".
func (f *FakeAPI) Requests(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[route]
}

// FavoriteCalls returns the accepted favorite writes in arrival order.
func (f *FakeAPI) FavoriteCalls() []FavoriteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FavoriteCall(nil), f.favoriteLog...)
}

// FailFavorite makes favorite writes for a restaurant answer 503.
func (f *FakeAPI) FailFavorite(id int64, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFavorites[id] = fail
}

// FailReviewsFor makes review submissions for a restaurant answer 503.
func (f *FakeAPI) FailReviewsFor(restaurantID int64, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReviewsFor[restaurantID] = fail
}

// OnFavorite installs a hook run before a favorite write is applied.
// The hook runs without the fake's lock held, so it may block.
func (f *FakeAPI) OnFavorite(fn func(id int64, value bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFavorite = fn
}

func (f *FakeAPI) count(route string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[route]++
}

func (f *FakeAPI) listRestaurants(w http.ResponseWriter, r *http.Request) {
	f.count("GET /restaurants")
	f.mu.Lock()
	out := make([]model.Restaurant, 0, len(f.restaurants))
	for _, rest := range f.restaurants {
		out = append(out, rest)
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) getRestaurant(w http.ResponseWriter, r *http.Request) {
	f.count("GET /restaurants/{id}")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	rest, ok := f.Restaurant(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rest)
}

func (f *FakeAPI) putFavorite(w http.ResponseWriter, r *http.Request) {
	f.count("PUT /restaurants/{id}")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	value, err := strconv.ParseBool(r.URL.Query().Get("is_favorite"))
	if err != nil {
		http.Error(w, "bad is_favorite", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	hook := f.onFavorite
	fail := f.failFavorites[id]
	f.mu.Unlock()
	if hook != nil {
		hook(id, value)
	}
	if fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	rest, ok := f.restaurants[id]
	if ok {
		rest.IsFavorite = model.FavoriteOf(value)
		f.restaurants[id] = rest
	}
	f.favoriteLog = append(f.favoriteLog, FavoriteCall{RestaurantID: id, IsFavorite: value})
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rest)
}

func (f *FakeAPI) listReviews(w http.ResponseWriter, r *http.Request) {
	f.count("GET /reviews")
	var filter int64
	if raw := r.URL.Query().Get("restaurant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "bad restaurant_id", http.StatusBadRequest)
			return
		}
		filter = id
	}
	out := []model.Review{}
	for _, rev := range f.Reviews() {
		if filter == 0 || rev.RestaurantID == filter {
			out = append(out, rev)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) createReview(w http.ResponseWriter, r *http.Request) {
	f.count("POST /reviews")
	var input model.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "bad review", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	fail := f.failReviewsFor[input.RestaurantID]
	f.mu.Unlock()
	if fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	created := f.AddReview(model.Review{
		RestaurantID: input.RestaurantID,
		Name:         input.Name,
		Rating:       input.Rating,
		Comments:     input.Comments,
		CreatedAt:    model.At(FixedClock().Now()),
		UpdatedAt:    model.At(FixedClock().Now()),
	})
	writeJSON(w, http.StatusCreated, created)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type offlineTransport struct {
	next    http.RoundTripper
	offline func() bool
}

func (t *offlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.offline() {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrOffline
	}
	return t.next.RoundTrip(req)
}
