package model

import "time"

// SyncState tags a locally stored record with whether the server has confirmed it.
type SyncState string

const (
	// Confirmed records match what the Data API last acknowledged.
	Confirmed SyncState = "confirmed"
	// PendingLocal records carry a local write the Data API has not acknowledged yet.
	PendingLocal SyncState = "pending_local"
)

// Favorite is the tri-state favorite flag of a restaurant.
// The zero value is FavoriteUnknown.
type Favorite int8

const (
	FavoriteUnknown Favorite = iota
	FavoriteFalse
	FavoriteTrue
)

// FavoriteOf converts a bool into a known Favorite value.
func FavoriteOf(v bool) Favorite {
	if v {
		return FavoriteTrue
	}
	return FavoriteFalse
}

// Known reports whether the flag holds a definite value.
func (f Favorite) Known() bool { return f != FavoriteUnknown }

// Bool returns the flag as a bool; unknown reads as false.
func (f Favorite) Bool() bool { return f == FavoriteTrue }

func (f Favorite) String() string {
	switch f {
	case FavoriteTrue:
		return "true"
	case FavoriteFalse:
		return "false"
	default:
		return "unknown"
	}
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Restaurant mirrors a record of the Data API's /restaurants collection.
// FavoriteState and FavoriteSeq are local bookkeeping for the optimistic
// favorite write and are never sent to the server.
type Restaurant struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Neighborhood   string            `json:"neighborhood"`
	Photograph     string            `json:"photograph,omitempty"`
	Address        string            `json:"address"`
	LatLng         LatLng            `json:"latlng"`
	CuisineType    string            `json:"cuisine_type"`
	OperatingHours map[string]string `json:"operating_hours,omitempty"`
	IsFavorite     Favorite          `json:"is_favorite"`
	FavoriteState  SyncState         `json:"favorite_state,omitempty"`
	FavoriteSeq    int64             `json:"-"`
	CreatedAt      Timestamp         `json:"createdAt"`
	UpdatedAt      Timestamp         `json:"updatedAt"`
}

// Rating is a review score from 1 to 5. Unrated is the sentinel for no score.
type Rating int

const Unrated Rating = 0

// Valid reports whether r is Unrated or within 1..5.
func (r Rating) Valid() bool { return r >= Unrated && r <= 5 }

// Review is either a server record (ID set, State Confirmed) or a local
// submission waiting for replay (PlaceholderID set, State PendingLocal).
// Exactly one of ID and PlaceholderID is set.
type Review struct {
	ID            int64
	PlaceholderID string
	State         SyncState
	RestaurantID  int64
	Name          string
	Rating        Rating
	Comments      string
	CreatedAt     Timestamp
	UpdatedAt     Timestamp
}

// Pending reports whether the review is still waiting for the server.
func (r Review) Pending() bool { return r.State == PendingLocal }

// Input returns the submission payload for r, without any identity.
func (r Review) Input() ReviewInput {
	return ReviewInput{
		RestaurantID: r.RestaurantID,
		Name:         r.Name,
		Rating:       r.Rating,
		Comments:     r.Comments,
	}
}

// ReviewInput is the body of POST /reviews.
type ReviewInput struct {
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name"`
	Rating       Rating `json:"rating"`
	Comments     string `json:"comments"`
}

// PendingFavorite is a favorite toggle that has not reached the server.
// There is at most one per restaurant; Seq orders it against other local
// favorite writes for the same restaurant.
type PendingFavorite struct {
	RestaurantID int64     `json:"restaurant_id"`
	IsFavorite   bool      `json:"is_favorite"`
	Seq          int64     `json:"seq"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkerEvent records one lifecycle step of the sync worker
// (install, activate or a replay cycle).
type WorkerEvent struct {
	ID         int64      `json:"id"`
	Kind       string     `json:"kind"`
	Detail     string     `json:"detail,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"` // "running", "success" or "error"
}
