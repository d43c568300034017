package search

import "estate/api/internal/store"

// Result is a single search hit returned to the caller.
type Result struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Snippet      string  `json:"snippet"`
	City         string  `json:"city"`
	Locality     string  `json:"locality"`
	DealType     string  `json:"dealType"`
	PropertyType string  `json:"propertyType"`
	Price        float64 `json:"price"`
	Beds         int     `json:"beds"`
	Image        string  `json:"image,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text     string
	DealType string // empty = both
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ListingRecord is the data we index for an active listing.
type ListingRecord struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	City         string  `json:"city"`
	Locality     string  `json:"locality"`
	Address      string  `json:"address"`
	DealType     string  `json:"dealType"`
	PropertyType string  `json:"propertyType"`
	Price        float64 `json:"price"`
	Beds         int     `json:"beds"`
	Image        string  `json:"image"`
	CreatedAt    int64   `json:"createdAt"`
}

func NewListingRecord(p store.Property) ListingRecord {
	record := ListingRecord{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		City:         p.City,
		Locality:     p.Locality,
		Address:      p.Address,
		DealType:     p.DealType,
		PropertyType: p.PropertyType,
		Price:        p.Price,
		Beds:         p.Beds,
		CreatedAt:    p.CreatedAt.Unix(),
	}
	if len(p.Images) > 0 {
		record.Image = p.Images[0]
	}
	return record
}

// ResultFromProperty renders a store hit in search result form.
func ResultFromProperty(p store.Property) Result {
	result := Result{
		ID:           p.ID,
		Title:        p.Title,
		Snippet:      p.Description,
		City:         p.City,
		Locality:     p.Locality,
		DealType:     p.DealType,
		PropertyType: p.PropertyType,
		Price:        p.Price,
		Beds:         p.Beds,
	}
	if len(p.Images) > 0 {
		result.Image = p.Images[0]
	}
	return result
}
