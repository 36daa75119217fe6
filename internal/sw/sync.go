package sw

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"rr-sync/internal/model"
)

var (
	// ErrInvalidReview is returned for a review submission that can never succeed.
	ErrInvalidReview = errors.New("invalid review")
	// ErrInvalidRestaurant is returned for a non-positive restaurant id.
	ErrInvalidRestaurant = errors.New("invalid restaurant id")
)

// Outcome says whether a mutation reached the server.
type Outcome string

const (
	// Accepted mutations were confirmed by the Data API.
	Accepted Outcome = "accepted"
	// Pending mutations were applied locally and queued for replay.
	Pending Outcome = "pending"
)

// FavoriteResult is the outcome of UpdateFavorite.
type FavoriteResult struct {
	Status       Outcome
	RestaurantID int64
	IsFavorite   bool
	// Seq is the sequence number of this local write; 0 if the store failed.
	Seq int64
	// Restaurant is the stored record after the update, when there is one.
	Restaurant *model.Restaurant
}

// ReviewResult is the outcome of AddReview. Review carries the server id when
// Accepted and the placeholder id when Pending.
type ReviewResult struct {
	Status Outcome
	Review model.Review
}

// SyncEngine serves restaurant and review data from the local store, falls
// back to the Data API, and queues mutations that cannot reach it.
//
// Reads never fail because of the network: with an empty store and no
// network the result is empty. Store errors are logged and bypassed.
type SyncEngine struct {
	store   Store
	api     API
	logger  Logger
	clock   Clock
	locks   *KeyedMutex
	flights singleflight.Group
}

// NewSyncEngine creates a SyncEngine with the provided dependencies.
func NewSyncEngine(store Store, api API, logger Logger, clock Clock) *SyncEngine {
	return &SyncEngine{
		store:  store,
		api:    api,
		logger: logger,
		clock:  clock,
		locks:  NewKeyedMutex(),
	}
}

// FetchRestaurants returns every restaurant, from the store when it has any.
// The error is non-nil only when ctx is done.
func (e *SyncEngine) FetchRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	local, err := e.store.ListRestaurants(ctx)
	if err != nil {
		e.logger.Warn("local restaurant read failed", "error", err)
	} else if len(local) > 0 {
		return local, nil
	}

	v, err := e.share(ctx, "restaurants", func(ctx context.Context) (any, error) {
		remote, err := e.api.Restaurants(ctx)
		if err != nil {
			return nil, err
		}
		if err := e.store.UpsertRestaurants(ctx, remote); err != nil {
			e.logger.Warn("storing restaurants failed", "error", err)
			return remote, nil
		}
		stored, err := e.store.ListRestaurants(ctx)
		if err != nil || len(stored) == 0 {
			return remote, nil
		}
		return stored, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Info("restaurants unavailable offline", "error", err)
		return nil, nil
	}
	return v.([]model.Restaurant), nil
}

// FetchRestaurant returns one restaurant, or nil when neither the store nor
// the network has it. The error is non-nil only when ctx is done.
func (e *SyncEngine) FetchRestaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	local, err := e.store.GetRestaurant(ctx, id)
	if err != nil {
		e.logger.Warn("local restaurant read failed", "restaurant_id", id, "error", err)
	} else if local != nil {
		return local, nil
	}

	v, err := e.share(ctx, "restaurant:"+strconv.FormatInt(id, 10), func(ctx context.Context) (any, error) {
		remote, err := e.api.Restaurant(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := e.store.UpsertRestaurants(ctx, []model.Restaurant{*remote}); err != nil {
			e.logger.Warn("storing restaurant failed", "restaurant_id", id, "error", err)
			return remote, nil
		}
		stored, err := e.store.GetRestaurant(ctx, remote.ID)
		if err != nil || stored == nil {
			return remote, nil
		}
		return stored, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Info("restaurant unavailable offline", "restaurant_id", id, "error", err)
		return nil, nil
	}
	return v.(*model.Restaurant), nil
}

// share runs fn once per key for all concurrent callers. fn gets a context
// that outlives any single caller; each caller stops waiting when its own ctx
// is done.
func (e *SyncEngine) share(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	detached := context.WithoutCancel(ctx)
	ch := e.flights.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// FetchReviews returns every review, confirmed and pending.
func (e *SyncEngine) FetchReviews(ctx context.Context) ([]model.Review, error) {
	return e.fetchReviews(ctx, "reviews", e.store.ListReviews, e.api.Reviews)
}

// FetchReviewsForRestaurant returns the reviews of one restaurant,
// including reviews still waiting for replay.
func (e *SyncEngine) FetchReviewsForRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	local := func(ctx context.Context) ([]model.Review, error) {
		return e.store.ListReviewsByRestaurant(ctx, restaurantID)
	}
	remote := func(ctx context.Context) ([]model.Review, error) {
		return e.api.ReviewsForRestaurant(ctx, restaurantID)
	}
	return e.fetchReviews(ctx, "reviews:"+strconv.FormatInt(restaurantID, 10), local, remote)
}

func (e *SyncEngine) fetchReviews(
	ctx context.Context,
	key string,
	local func(context.Context) ([]model.Review, error),
	remote func(context.Context) ([]model.Review, error),
) ([]model.Review, error) {
	stored, err := local(ctx)
	if err != nil {
		e.logger.Warn("local review read failed", "key", key, "error", err)
	} else if len(stored) > 0 {
		return stored, nil
	}

	v, err := e.share(ctx, key, func(ctx context.Context) (any, error) {
		fetched, err := remote(ctx)
		if err != nil {
			return nil, err
		}
		confirmed := make([]model.Review, 0, len(fetched))
		for _, r := range fetched {
			if r.ID <= 0 {
				e.logger.Warn("dropping server review without id", "restaurant_id", r.RestaurantID)
				continue
			}
			r.State = model.Confirmed
			r.PlaceholderID = ""
			confirmed = append(confirmed, r)
		}
		if err := e.store.UpsertReviews(ctx, confirmed); err != nil {
			e.logger.Warn("storing reviews failed", "key", key, "error", err)
			return confirmed, nil
		}
		reread, err := local(ctx)
		if err != nil || len(reread) == 0 {
			return confirmed, nil
		}
		return reread, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Info("reviews unavailable offline", "key", key, "error", err)
		return nil, nil
	}
	return v.([]model.Review), nil
}

// UpdateFavorite writes and queues the favorite flag locally, then sends it
// to the Data API. If the network call fails the result is Pending and the
// queued write waits for replay; the caller never sees a network error.
// The error is non-nil when the write could neither be stored nor sent.
//
// The restaurant's lock is held for the whole call, so a replay of an older
// write for the same restaurant cannot interleave with it.
func (e *SyncEngine) UpdateFavorite(ctx context.Context, restaurantID int64, value bool) (FavoriteResult, error) {
	if restaurantID <= 0 {
		return FavoriteResult{}, fmt.Errorf("%w: %d", ErrInvalidRestaurant, restaurantID)
	}
	if err := e.locks.LockContext(ctx, restaurantID); err != nil {
		return FavoriteResult{}, err
	}
	defer e.locks.Unlock(restaurantID)

	result := FavoriteResult{RestaurantID: restaurantID, IsFavorite: value}

	seq, localErr := e.store.SetFavoriteLocal(ctx, restaurantID, value)
	if localErr != nil {
		e.logger.Warn("local favorite write failed", "restaurant_id", restaurantID, "error", localErr)
	}
	result.Seq = seq

	server, err := e.api.SetFavorite(ctx, restaurantID, value)
	// The write is already committed; a caller that went away must not undo it.
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if localErr != nil {
			return FavoriteResult{}, fmt.Errorf("queueing favorite: %w", localErr)
		}
		e.logger.Info("favorite queued for replay", "restaurant_id", restaurantID, "is_favorite", value, "seq", seq, "error", err)
		result.Status = Pending
		result.Restaurant = e.storedRestaurant(ctx, restaurantID)
		return result, nil
	}

	result.Status = Accepted
	if seq > 0 {
		if err := e.store.ConfirmFavorite(ctx, restaurantID, seq); err != nil {
			e.logger.Warn("confirming favorite failed", "restaurant_id", restaurantID, "error", err)
		}
	}
	if server != nil && server.ID == restaurantID {
		if err := e.store.UpsertRestaurants(ctx, []model.Restaurant{*server}); err != nil {
			e.logger.Warn("storing restaurant failed", "restaurant_id", restaurantID, "error", err)
		}
	}
	result.Restaurant = e.storedRestaurant(ctx, restaurantID)
	if result.Restaurant == nil {
		result.Restaurant = server
	}
	return result, nil
}

func (e *SyncEngine) storedRestaurant(ctx context.Context, id int64) *model.Restaurant {
	r, err := e.store.GetRestaurant(ctx, id)
	if err != nil {
		e.logger.Warn("local restaurant read failed", "restaurant_id", id, "error", err)
		return nil
	}
	return r
}

// AddReview submits a review. If the Data API cannot be reached the review
// is stored under a new placeholder id and the result is Pending.
func (e *SyncEngine) AddReview(ctx context.Context, input model.ReviewInput) (ReviewResult, error) {
	if err := ValidateReview(input); err != nil {
		return ReviewResult{}, err
	}

	server, err := e.api.CreateReview(ctx, input)
	if err == nil {
		confirmed := *server
		confirmed.State = model.Confirmed
		if err := e.store.UpsertReviews(ctx, []model.Review{confirmed}); err != nil {
			e.logger.Warn("storing review failed", "review_id", confirmed.ID, "error", err)
		}
		return ReviewResult{Status: Accepted, Review: confirmed}, nil
	}

	e.logger.Info("review queued for replay", "restaurant_id", input.RestaurantID, "error", err)
	pending, err := e.store.AddPendingReview(ctx, input, e.clock.Now())
	if err != nil {
		return ReviewResult{}, fmt.Errorf("queueing review: %w", err)
	}
	return ReviewResult{Status: Pending, Review: pending}, nil
}

// ValidateReview rejects submissions the Data API would never accept.
func ValidateReview(input model.ReviewInput) error {
	if input.RestaurantID <= 0 {
		return fmt.Errorf("%w: restaurant_id must be positive", ErrInvalidReview)
	}
	if !input.Rating.Valid() {
		return fmt.Errorf("%w: rating must be unset or between 1 and 5", ErrInvalidReview)
	}
	return nil
}
