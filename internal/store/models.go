package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by every backend when the addressed entity does not exist.
var ErrNotFound = errors.New("not found")

const (
	RoleOwner  = "owner"
	RoleBroker = "broker"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

const (
	DealSale = "sale"
	DealRent = "rent"
)

const (
	StatusActive = "active"
	StatusDraft  = "draft"
	StatusSold   = "sold"
)

var (
	DealTypes     = []string{DealSale, DealRent}
	PropertyTypes = []string{"Apartment", "Villa", "Plot", "Commercial"}
	Furnishings   = []string{"Unfurnished", "Semi-Furnished", "Fully-Furnished"}
	Statuses      = []string{StatusActive, StatusDraft, StatusSold}
)

type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            string
	Avatar          string
	Phone           string
	Verified        bool
	Rating          float64
	SavedProperties []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PropertyStats struct {
	Views     int64
	Saves     int64
	Inquiries int64
}

type Location struct {
	Lat float64
	Lng float64
}

type Property struct {
	ID           string
	Title        string
	Description  string
	Price        float64
	DealType     string
	PropertyType string
	Beds         int
	Baths        int
	Area         float64
	City         string
	Locality     string
	Address      string
	Pincode      string
	Images       []string
	Amenities    []string
	Highlights   []string
	Furnishing   string
	Status       string
	ListedBy     string
	Stats        PropertyStats
	Location     *Location
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PropertyPatch carries the fields of an owner update. Nil fields are left untouched.
type PropertyPatch struct {
	Title        *string
	Description  *string
	Price        *float64
	DealType     *string
	PropertyType *string
	Beds         *int
	Baths        *int
	Area         *float64
	City         *string
	Locality     *string
	Address      *string
	Pincode      *string
	Images       []string
	Amenities    []string
	Highlights   []string
	Furnishing   *string
	Status       *string
	Location     *Location
}

// Apply returns a copy of p with the patch applied.
func (patch PropertyPatch) Apply(p Property) Property {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.DealType != nil {
		p.DealType = *patch.DealType
	}
	if patch.PropertyType != nil {
		p.PropertyType = *patch.PropertyType
	}
	if patch.Beds != nil {
		p.Beds = *patch.Beds
	}
	if patch.Baths != nil {
		p.Baths = *patch.Baths
	}
	if patch.Area != nil {
		p.Area = *patch.Area
	}
	if patch.City != nil {
		p.City = *patch.City
	}
	if patch.Locality != nil {
		p.Locality = *patch.Locality
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.Pincode != nil {
		p.Pincode = *patch.Pincode
	}
	if patch.Images != nil {
		p.Images = patch.Images
	}
	if patch.Amenities != nil {
		p.Amenities = patch.Amenities
	}
	if patch.Highlights != nil {
		p.Highlights = patch.Highlights
	}
	if patch.Furnishing != nil {
		p.Furnishing = *patch.Furnishing
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Location != nil {
		loc := *patch.Location
		p.Location = &loc
	}
	return p
}

type Message struct {
	ID        string
	Sender    string
	Text      string
	Read      bool
	CreatedAt time.Time
}

type Chat struct {
	ID              string
	Property        string
	Participants    []string
	Messages        []Message
	LastMessage     string
	LastMessageTime time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasParticipant reports whether userID is one of the chat's participants.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// PairKey returns the order independent key of a participant pair.
func PairKey(a, b string) (low, high string) {
	if b < a {
		return b, a
	}
	return a, b
}

// SortedPair returns the participants of a pair in PairKey order. Every
// backend stores and returns chat participants in this order.
func SortedPair(a, b string) []string {
	low, high := PairKey(a, b)
	return []string{low, high}
}

// SavedToggle is the outcome of flipping one property in a user's saved set.
// Changed is false when a concurrent toggle already produced the same state.
type SavedToggle struct {
	Saved       bool
	Changed     bool
	PropertyIDs []string
}

// Stat names a property counter.
type Stat string

const (
	StatViews     Stat = "views"
	StatSaves     Stat = "saves"
	StatInquiries Stat = "inquiries"
)

func (s Stat) Valid() bool {
	switch s {
	case StatViews, StatSaves, StatInquiries:
		return true
	default:
		return false
	}
}
