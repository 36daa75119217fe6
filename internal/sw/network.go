package sw

import (
	"context"

	"rr-sync/internal/model"
)

// API is the remote Data API the worker mirrors. Any transport error or
// unexpected status is reported as an error; the sync engine treats every
// error as a transient network failure.
type API interface {
	// Restaurants fetches GET /restaurants.
	Restaurants(ctx context.Context) ([]model.Restaurant, error)

	// Restaurant fetches GET /restaurants/{id}.
	Restaurant(ctx context.Context, id int64) (*model.Restaurant, error)

	// SetFavorite issues PUT /restaurants/{id}/?is_favorite={value}.
	SetFavorite(ctx context.Context, id int64, value bool) (*model.Restaurant, error)

	// Reviews fetches GET /reviews/.
	Reviews(ctx context.Context) ([]model.Review, error)

	// ReviewsForRestaurant fetches GET /reviews/?restaurant_id={id}.
	ReviewsForRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error)

	// CreateReview issues POST /reviews/ and returns the server record.
	CreateReview(ctx context.Context, input model.ReviewInput) (*model.Review, error)
}
