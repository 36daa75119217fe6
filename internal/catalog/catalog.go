// Package catalog filters and labels restaurant listings for display.
package catalog

import (
	"strconv"
	"strings"

	"rr-sync/internal/model"
)

// All selects every cuisine or neighborhood.
const All = "all"

// View is a restaurant listing together with the active filters. Filter
// functions take a View and return a new one; nothing is shared globally.
type View struct {
	Restaurants   []model.Restaurant
	Cuisine       string
	Neighborhood  string
	FavoritesOnly bool
	// Results is the filtered listing; set by Apply.
	Results []model.Restaurant
}

// NewView returns an unfiltered view over restaurants.
func NewView(restaurants []model.Restaurant) View {
	return Apply(View{Restaurants: restaurants, Cuisine: All, Neighborhood: All})
}

// Select returns v with a new cuisine and neighborhood selection applied.
// An empty value selects all.
func Select(v View, cuisine, neighborhood string) View {
	v.Cuisine = orAll(cuisine)
	v.Neighborhood = orAll(neighborhood)
	return Apply(v)
}

// OnlyFavorites returns v restricted to favorite restaurants, or not.
func OnlyFavorites(v View, only bool) View {
	v.FavoritesOnly = only
	return Apply(v)
}

// Apply recomputes v.Results from the selection.
func Apply(v View) View {
	cuisine := orAll(v.Cuisine)
	neighborhood := orAll(v.Neighborhood)

	results := make([]model.Restaurant, 0, len(v.Restaurants))
	for _, r := range v.Restaurants {
		if cuisine != All && r.CuisineType != cuisine {
			continue
		}
		if neighborhood != All && r.Neighborhood != neighborhood {
			continue
		}
		if v.FavoritesOnly && !r.IsFavorite.Bool() {
			continue
		}
		results = append(results, r)
	}
	v.Results = results
	return v
}

func orAll(s string) string {
	if s == "" {
		return All
	}
	return s
}

// Neighborhoods returns the distinct neighborhoods in first-seen order.
func Neighborhoods(restaurants []model.Restaurant) []string {
	return distinct(restaurants, func(r model.Restaurant) string { return r.Neighborhood })
}

// Cuisines returns the distinct cuisine types in first-seen order.
func Cuisines(restaurants []model.Restaurant) []string {
	return distinct(restaurants, func(r model.Restaurant) string { return r.CuisineType })
}

func distinct(restaurants []model.Restaurant, field func(model.Restaurant) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range restaurants {
		v := field(r)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Favorites returns the restaurants marked as favorite.
func Favorites(restaurants []model.Restaurant) []model.Restaurant {
	return OnlyFavorites(View{Restaurants: restaurants}, true).Results
}

// MakeTag turns a restaurant name into a URL tag: spaces become
// underscores, other non-alphanumerics are dropped, and it is lower-cased.
func MakeTag(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c == ' ' || c == '_':
			b.WriteByte('_')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c + ('a' - 'A'))
		}
	}
	return b.String()
}

// ByTag returns the restaurant whose name produces tag, or nil.
func ByTag(restaurants []model.Restaurant, tag string) *model.Restaurant {
	for i := range restaurants {
		if MakeTag(restaurants[i].Name) == tag {
			return &restaurants[i]
		}
	}
	return nil
}

// ByID returns the restaurant with the given id, or nil.
func ByID(restaurants []model.Restaurant, id int64) *model.Restaurant {
	for i := range restaurants {
		if restaurants[i].ID == id {
			return &restaurants[i]
		}
	}
	return nil
}

// URLFor returns the page URL of a restaurant.
func URLFor(r model.Restaurant) string {
	return "./restaurant/" + MakeTag(r.Name)
}

// ImageURLFor returns the image URL of a restaurant, falling back to its id
// when it has no photograph.
func ImageURLFor(r model.Restaurant) string {
	name := r.Photograph
	if name == "" {
		name = strconv.FormatInt(r.ID, 10)
	}
	return "./img/" + name + ".jpg"
}
