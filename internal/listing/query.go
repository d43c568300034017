// Package listing turns raw listing filter parameters into a store query.
package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"estate/api/internal/store"
)

// ErrInvalidFilter wraps every rejected filter parameter.
var ErrInvalidFilter = errors.New("invalid filter")

const (
	all     = "all"
	bedsMin = "4+"
)

// Filter holds the listing filter parameters as the client sent them, after
// numeric validation. Empty strings and "all" mean no constraint.
type Filter struct {
	SearchQuery  string
	City         string
	DealType     string
	PropertyType string
	MinPrice     *float64
	MaxPrice     *float64
	Beds         string
	ListedBy     string
}

// RoleResolver returns the ids of users holding role.
type RoleResolver interface {
	ListUserIDsByRole(ctx context.Context, role string) ([]string, error)
}

// ParseFilter reads the filter parameters from a query string.
func ParseFilter(values url.Values) (Filter, error) {
	filter := Filter{
		SearchQuery:  strings.TrimSpace(values.Get("searchQuery")),
		City:         strings.TrimSpace(values.Get("city")),
		DealType:     strings.TrimSpace(values.Get("dealType")),
		PropertyType: strings.TrimSpace(values.Get("propertyType")),
		Beds:         normalizeBeds(values.Get("beds")),
		ListedBy:     strings.TrimSpace(values.Get("listedBy")),
	}

	var err error
	if filter.MinPrice, err = parsePrice("minPrice", values.Get("minPrice")); err != nil {
		return Filter{}, err
	}
	if filter.MaxPrice, err = parsePrice("maxPrice", values.Get("maxPrice")); err != nil {
		return Filter{}, err
	}
	if _, _, err := parseBeds(filter.Beds); err != nil {
		return Filter{}, err
	}
	return filter, nil
}

func parsePrice(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidFilter, name)
	}
	return &value, nil
}

// normalizeBeds trims raw. An unencoded "4+" arrives as "4 " because the
// query decoder turns "+" into a space, so that form maps back to "4+".
func normalizeBeds(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed+"+" == bedsMin && strings.HasSuffix(raw, " ") {
		return bedsMin
	}
	return trimmed
}

// parseBeds returns either an exact bed count or a lower bound.
func parseBeds(raw string) (exact, atLeast *int, err error) {
	switch raw {
	case "", all:
		return nil, nil, nil
	case bedsMin:
		floor := 4
		return nil, &floor, nil
	}
	value, convErr := strconv.Atoi(raw)
	if convErr != nil || value < 0 {
		return nil, nil, fmt.Errorf("%w: beds must be %q, %q or a whole number", ErrInvalidFilter, all, bedsMin)
	}
	return &value, nil, nil
}

func constrained(value string) bool {
	return value != "" && value != all
}

// Build produces the predicate for filter. Only active listings are ever
// returned. The search term is one OR-group over title, city and locality that
// is AND-ed with the remaining constraints.
func Build(ctx context.Context, filter Filter, roles RoleResolver) (store.PropertyQuery, error) {
	query := store.PropertyQuery{
		Status:   store.StatusActive,
		Search:   filter.SearchQuery,
		MinPrice: filter.MinPrice,
		MaxPrice: filter.MaxPrice,
	}
	if constrained(filter.City) {
		query.City = filter.City
	}
	if constrained(filter.DealType) {
		query.DealType = filter.DealType
	}
	if constrained(filter.PropertyType) {
		query.PropertyType = filter.PropertyType
	}

	exact, atLeast, err := parseBeds(filter.Beds)
	if err != nil {
		return store.PropertyQuery{}, err
	}
	query.Beds = exact
	query.MinBeds = atLeast

	if constrained(filter.ListedBy) {
		ids, err := roles.ListUserIDsByRole(ctx, filter.ListedBy)
		if err != nil {
			return store.PropertyQuery{}, fmt.Errorf("resolve listers with role %s: %w", filter.ListedBy, err)
		}
		query.RestrictListedBy = true
		query.ListedBy = ids
		if query.ListedBy == nil {
			query.ListedBy = []string{}
		}
	}
	return query, nil
}
