package sw

import (
	"context"
	"time"

	"rr-sync/internal/model"
)

// Store is the local persistent record store the sync worker mirrors the
// Data API into. Every method runs in its own transaction; read-then-write
// sequences on one record are atomic with respect to other writers.
// Lookups of a single record return (nil, nil) when it is not stored.
type Store interface {
	// Restaurant operations

	// ListRestaurants returns every stored restaurant ordered by id.
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)

	// GetRestaurant returns the restaurant with the given id.
	GetRestaurant(ctx context.Context, id int64) (*model.Restaurant, error)

	// UpsertRestaurants writes server records keyed by id, overwriting stored
	// fields. A restaurant whose favorite is PendingLocal keeps its local
	// favorite value; a new restaurant with a pending favorite takes it.
	UpsertRestaurants(ctx context.Context, restaurants []model.Restaurant) error

	// SetFavoriteLocal optimistically writes the favorite flag, tags it
	// PendingLocal, queues the matching pending favorite and returns the
	// sequence number assigned to this write, all in one transaction.
	// A restaurant that is not stored yet only gets the queued entry.
	SetFavoriteLocal(ctx context.Context, restaurantID int64, value bool) (int64, error)

	// ConfirmFavorite records that the server accepted the favorite write with
	// the given sequence number: pending favorites up to seq are dropped and
	// the restaurant is tagged Confirmed if no newer local write happened.
	ConfirmFavorite(ctx context.Context, restaurantID int64, seq int64) error

	// Pending favorite operations

	// PutPendingFavorite stores the pending favorite for its restaurant,
	// replacing an older one. An entry with a lower Seq never replaces a newer one.
	PutPendingFavorite(ctx context.Context, pending model.PendingFavorite) error

	// GetPendingFavorite returns the pending favorite for a restaurant.
	GetPendingFavorite(ctx context.Context, restaurantID int64) (*model.PendingFavorite, error)

	// ListPendingFavorites returns all pending favorites ordered by restaurant id.
	ListPendingFavorites(ctx context.Context) ([]model.PendingFavorite, error)

	// Review operations

	// ListReviews returns every stored review, confirmed and pending.
	ListReviews(ctx context.Context) ([]model.Review, error)

	// ListReviewsByRestaurant returns the reviews of one restaurant using the
	// restaurant_id index, confirmed and pending.
	ListReviewsByRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error)

	// UpsertReviews writes server reviews keyed by their server id.
	UpsertReviews(ctx context.Context, reviews []model.Review) error

	// AddPendingReview stores a review that could not be submitted under a
	// newly allocated placeholder id and returns the stored record.
	AddPendingReview(ctx context.Context, input model.ReviewInput, createdAt time.Time) (model.Review, error)

	// ListPendingReviews returns every review tagged PendingLocal.
	ListPendingReviews(ctx context.Context) ([]model.Review, error)

	// ReplacePendingReview deletes the placeholder record and stores the
	// server record in a single transaction.
	ReplacePendingReview(ctx context.Context, placeholderID string, confirmed model.Review) error

	// Worker lifecycle history

	// CreateWorkerEvent records the start of a lifecycle step.
	CreateWorkerEvent(ctx context.Context, kind, detail string) (*model.WorkerEvent, error)

	// FinishWorkerEvent records the outcome of a lifecycle step.
	FinishWorkerEvent(ctx context.Context, id int64, status string) error

	// ListWorkerEvents returns the most recent lifecycle steps, newest first.
	ListWorkerEvents(ctx context.Context, limit int) ([]model.WorkerEvent, error)

	// Close closes the store.
	Close() error
}
