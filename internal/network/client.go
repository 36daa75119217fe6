package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rr-sync/internal/model"
	"rr-sync/internal/sw"
)

// ErrUnexpectedStatus is returned when the Data API answers with a status
// other than the one the call expects.
var ErrUnexpectedStatus = errors.New("unexpected status from data api")

// Client talks to the Data API directly. Its transport must reach the real
// network; it must never be the sync router itself.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a client for the Data API at origin, e.g. "http://localhost:1337".
// A nil httpClient uses http.DefaultClient.
func NewClient(origin string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api origin: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api origin must be absolute, got %q", origin)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, http: httpClient}, nil
}

// Restaurants fetches GET /restaurants.
func (c *Client) Restaurants(ctx context.Context) ([]model.Restaurant, error) {
	var out []model.Restaurant
	if err := c.do(ctx, http.MethodGet, "/restaurants", nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Restaurant fetches GET /restaurants/{id}.
func (c *Client) Restaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	var out model.Restaurant
	if err := c.do(ctx, http.MethodGet, "/restaurants/"+strconv.FormatInt(id, 10), nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("restaurant %d: response has no id", id)
	}
	return &out, nil
}

// SetFavorite issues PUT /restaurants/{id}/?is_favorite={value}. The server
// echoes the updated restaurant; an empty body yields a nil restaurant.
func (c *Client) SetFavorite(ctx context.Context, id int64, value bool) (*model.Restaurant, error) {
	query := url.Values{"is_favorite": {strconv.FormatBool(value)}}
	var out *model.Restaurant
	if err := c.do(ctx, http.MethodPut, "/restaurants/"+strconv.FormatInt(id, 10)+"/", query, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reviews fetches GET /reviews/.
func (c *Client) Reviews(ctx context.Context) ([]model.Review, error) {
	var out []model.Review
	if err := c.do(ctx, http.MethodGet, "/reviews/", nil, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReviewsForRestaurant fetches GET /reviews/?restaurant_id={id}.
func (c *Client) ReviewsForRestaurant(ctx context.Context, restaurantID int64) ([]model.Review, error) {
	query := url.Values{"restaurant_id": {strconv.FormatInt(restaurantID, 10)}}
	var out []model.Review
	if err := c.do(ctx, http.MethodGet, "/reviews/", query, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReview issues POST /reviews/ and returns the server record.
func (c *Client) CreateReview(ctx context.Context, input model.ReviewInput) (*model.Review, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding review: %w", err)
	}
	var out model.Review
	if err := c.do(ctx, http.MethodPost, "/reviews/", nil, body, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	if out.ID <= 0 {
		return nil, fmt.Errorf("created review has no server id")
	}
	out.State = model.Confirmed
	out.PlaceholderID = ""
	return &out, nil
}

// do sends one request and decodes the JSON response into out. Both 200 and
// 201 are accepted for writes since the Data API is not consistent about it.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, want int, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if !statusOK(method, resp.StatusCode, want) {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w: %d", method, path, ErrUnexpectedStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func statusOK(method string, got, want int) bool {
	if got == want {
		return true
	}
	if method == http.MethodGet {
		return false
	}
	return got == http.StatusOK || got == http.StatusCreated
}

// Compile-time check that Client implements sw.API
var _ sw.API = (*Client)(nil)
