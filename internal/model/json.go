package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The Data API is loose about scalar types: is_favorite arrives as a bool or
// as "true"/"false", ids and ratings as numbers or numeric strings, and
// timestamps as epoch milliseconds or RFC 3339 strings. Decoding accepts all
// of these; encoding always emits the canonical form.

var jsonNull = []byte("null")

func isNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), jsonNull)
}

func (f Favorite) MarshalJSON() ([]byte, error) {
	switch f {
	case FavoriteTrue:
		return []byte("true"), nil
	case FavoriteFalse:
		return []byte("false"), nil
	default:
		return jsonNull, nil
	}
}

func (f *Favorite) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*f = FavoriteUnknown
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FavoriteOf(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("is_favorite: unsupported value %s", data)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		*f = FavoriteTrue
	case "false":
		*f = FavoriteFalse
	case "":
		*f = FavoriteUnknown
	default:
		return fmt.Errorf("is_favorite: unsupported value %q", s)
	}
	return nil
}

func (r *Rating) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*r = Unrated
		return nil
	}
	n, err := decodeInt(data)
	if err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	*r = Rating(n)
	return nil
}

func (r Rating) MarshalJSON() ([]byte, error) {
	if r == Unrated {
		return jsonNull, nil
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// decodeInt reads a JSON number or numeric string. An empty string is 0.
func decodeInt(data []byte) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return strconv.ParseInt(n.String(), 10, 64)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("unsupported value %s", data)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Timestamp is a time.Time that decodes epoch milliseconds or RFC 3339.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp.
func At(t time.Time) Timestamp { return Timestamp{Time: t} }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return jsonNull, nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		t.Time = time.Time{}
		return nil
	}
	var ms json.Number
	if err := json.Unmarshal(data, &ms); err == nil {
		v, err := ms.Int64()
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = time.UnixMilli(v).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: unsupported value %s", data)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

func (r *Restaurant) UnmarshalJSON(data []byte) error {
	type plain Restaurant
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if !isNull(aux.ID) {
		id, err := decodeInt(aux.ID)
		if err != nil {
			return fmt.Errorf("restaurant id: %w", err)
		}
		r.ID = id
	}
	return nil
}

// reviewJSON is the wire shape of a review. "id" is the server integer for
// confirmed reviews and the placeholder string for pending ones; which one
// applies is decided by sync_state, never by the shape of the id.
type reviewJSON struct {
	ID           json.RawMessage `json:"id"`
	RestaurantID json.RawMessage `json:"restaurant_id"`
	Name         string          `json:"name"`
	Rating       Rating          `json:"rating"`
	Comments     string          `json:"comments"`
	CreatedAt    Timestamp       `json:"createdAt"`
	UpdatedAt    Timestamp       `json:"updatedAt"`
	SyncState    SyncState       `json:"sync_state,omitempty"`
}

func (r Review) MarshalJSON() ([]byte, error) {
	state := r.State
	if state == "" {
		state = Confirmed
	}
	var id []byte
	var err error
	if state == PendingLocal {
		id, err = json.Marshal(r.PlaceholderID)
	} else {
		id, err = json.Marshal(r.ID)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(reviewJSON{
		ID:           id,
		RestaurantID: json.RawMessage(strconv.FormatInt(r.RestaurantID, 10)),
		Name:         r.Name,
		Rating:       r.Rating,
		Comments:     r.Comments,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		SyncState:    state,
	})
}

func (r *Review) UnmarshalJSON(data []byte) error {
	var aux reviewJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := Review{
		Name:      aux.Name,
		Rating:    aux.Rating,
		Comments:  aux.Comments,
		CreatedAt: aux.CreatedAt,
		UpdatedAt: aux.UpdatedAt,
		State:     aux.SyncState,
	}
	if out.State == "" {
		out.State = Confirmed
	}
	if !isNull(aux.RestaurantID) {
		id, err := decodeInt(aux.RestaurantID)
		if err != nil {
			return fmt.Errorf("review restaurant_id: %w", err)
		}
		out.RestaurantID = id
	}
	if !isNull(aux.ID) {
		if out.State == PendingLocal {
			if err := json.Unmarshal(aux.ID, &out.PlaceholderID); err != nil {
				return fmt.Errorf("review placeholder id: %w", err)
			}
		} else {
			id, err := decodeInt(aux.ID)
			if err != nil {
				return fmt.Errorf("review id: %w", err)
			}
			out.ID = id
		}
	}
	*r = out
	return nil
}

func (in *ReviewInput) UnmarshalJSON(data []byte) error {
	var aux struct {
		RestaurantID json.RawMessage `json:"restaurant_id"`
		Name         string          `json:"name"`
		Rating       Rating          `json:"rating"`
		Comments     string          `json:"comments"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.Name = aux.Name
	in.Rating = aux.Rating
	in.Comments = aux.Comments
	in.RestaurantID = 0
	if !isNull(aux.RestaurantID) {
		id, err := decodeInt(aux.RestaurantID)
		if err != nil {
			return fmt.Errorf("restaurant_id: %w", err)
		}
		in.RestaurantID = id
	}
	return nil
}
