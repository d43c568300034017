package store

import "strings"

// PropertyQuery is the predicate produced by the listing query builder. Every
// set field is AND-ed; Search is a single OR-group over title, city and locality.
type PropertyQuery struct {
	Status       string
	Search       string
	City         string
	DealType     string
	PropertyType string
	MinPrice     *float64
	MaxPrice     *float64
	Beds         *int
	MinBeds      *int

	// RestrictListedBy limits results to ListedBy. An empty ListedBy with the
	// restriction on matches nothing.
	RestrictListedBy bool
	ListedBy         []string
}

// Matches evaluates the query against a single property. Backends translate the
// same shape into their native filter language.
func (q PropertyQuery) Matches(p Property) bool {
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.Search != "" {
		if !containsFold(p.Title, q.Search) && !containsFold(p.City, q.Search) && !containsFold(p.Locality, q.Search) {
			return false
		}
	}
	if q.City != "" && !containsFold(p.City, q.City) {
		return false
	}
	if q.DealType != "" && p.DealType != q.DealType {
		return false
	}
	if q.PropertyType != "" && p.PropertyType != q.PropertyType {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.Beds != nil && p.Beds != *q.Beds {
		return false
	}
	if q.MinBeds != nil && p.Beds < *q.MinBeds {
		return false
	}
	if q.RestrictListedBy {
		found := false
		for _, id := range q.ListedBy {
			if id == p.ListedBy {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
