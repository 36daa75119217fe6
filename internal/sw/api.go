package sw

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"rr-sync/internal/model"
)

// maxReviewBody bounds the size of a submitted review.
const maxReviewBody = 64 << 10

// DataHandler answers Data API requests from the SyncEngine. It never
// returns a transport error for a request it understands.
type DataHandler struct {
	engine *SyncEngine
	logger Logger
}

// NewDataHandler creates a DataHandler backed by engine.
func NewDataHandler(engine *SyncEngine, logger Logger) *DataHandler {
	return &DataHandler{engine: engine, logger: logger}
}

type favoriteEcho struct {
	ID         int64 `json:"id"`
	IsFavorite bool  `json:"is_favorite"`
}

// RoundTrip implements http.RoundTripper.
func (h *DataHandler) RoundTrip(req *http.Request) (*http.Response, error) {
	segments := splitPath(req.URL.Path)
	switch {
	case len(segments) == 1 && segments[0] == "restaurants":
		if req.Method != http.MethodGet {
			return methodNotAllowed(req, http.MethodGet)
		}
		return h.listRestaurants(req)
	case len(segments) == 2 && segments[0] == "restaurants":
		id, err := parseID(segments[1])
		if err != nil {
			return errorResponse(req, http.StatusBadRequest, "invalid restaurant id")
		}
		switch req.Method {
		case http.MethodGet:
			return h.getRestaurant(req, id)
		case http.MethodPut:
			return h.updateFavorite(req, id)
		default:
			return methodNotAllowed(req, http.MethodGet, http.MethodPut)
		}
	case len(segments) == 1 && segments[0] == "reviews":
		switch req.Method {
		case http.MethodGet:
			return h.listReviews(req)
		case http.MethodPost:
			return h.addReview(req)
		default:
			return methodNotAllowed(req, http.MethodGet, http.MethodPost)
		}
	default:
		return errorResponse(req, http.StatusNotFound, "unknown api path "+req.URL.Path)
	}
}

func (h *DataHandler) listRestaurants(req *http.Request) (*http.Response, error) {
	restaurants, err := h.engine.FetchRestaurants(req.Context())
	if err != nil {
		return nil, err
	}
	if restaurants == nil {
		restaurants = []model.Restaurant{}
	}
	return jsonResponse(req, http.StatusOK, restaurants)
}

func (h *DataHandler) getRestaurant(req *http.Request, id int64) (*http.Response, error) {
	restaurant, err := h.engine.FetchRestaurant(req.Context(), id)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return jsonResponse(req, http.StatusOK, struct{}{})
	}
	return jsonResponse(req, http.StatusOK, restaurant)
}

func (h *DataHandler) updateFavorite(req *http.Request, id int64) (*http.Response, error) {
	value, err := strconv.ParseBool(req.URL.Query().Get("is_favorite"))
	if err != nil {
		return errorResponse(req, http.StatusBadRequest, "is_favorite must be true or false")
	}
	result, err := h.engine.UpdateFavorite(req.Context(), id, value)
	if errors.Is(err, ErrInvalidRestaurant) {
		return errorResponse(req, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.logger.Error("favorite lost", "restaurant_id", id, "is_favorite", value, "error", err)
		return errorResponse(req, http.StatusInternalServerError, "favorite could not be stored")
	}
	if result.Status == Pending {
		return pendingResponse(req, favoriteEcho{ID: id, IsFavorite: value})
	}
	if result.Restaurant != nil {
		return jsonResponse(req, http.StatusOK, result.Restaurant)
	}
	return jsonResponse(req, http.StatusOK, favoriteEcho{ID: id, IsFavorite: value})
}

func (h *DataHandler) listReviews(req *http.Request) (*http.Response, error) {
	var (
		reviews []model.Review
		err     error
	)
	if raw := req.URL.Query().Get("restaurant_id"); raw != "" {
		id, perr := parseID(raw)
		if perr != nil {
			return errorResponse(req, http.StatusBadRequest, "invalid restaurant_id")
		}
		reviews, err = h.engine.FetchReviewsForRestaurant(req.Context(), id)
	} else {
		reviews, err = h.engine.FetchReviews(req.Context())
	}
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return jsonResponse(req, http.StatusOK, reviews)
}

func (h *DataHandler) addReview(req *http.Request) (*http.Response, error) {
	if req.Body == nil {
		return errorResponse(req, http.StatusBadRequest, "missing review body")
	}
	defer req.Body.Close()

	var input model.ReviewInput
	if err := json.NewDecoder(io.LimitReader(req.Body, maxReviewBody)).Decode(&input); err != nil {
		return errorResponse(req, http.StatusBadRequest, "malformed review: "+err.Error())
	}
	result, err := h.engine.AddReview(req.Context(), input)
	if errors.Is(err, ErrInvalidReview) {
		return errorResponse(req, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.logger.Error("review lost", "restaurant_id", input.RestaurantID, "error", err)
		return errorResponse(req, http.StatusInternalServerError, "review could not be stored")
	}
	if result.Status == Pending {
		return pendingResponse(req, result.Review)
	}
	return jsonResponse(req, http.StatusCreated, result.Review)
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, ErrInvalidRestaurant
	}
	return id, nil
}
