package app

import (
	"context"
	"fmt"
	"time"

	"estate/api/internal/store"
)

// Views are the JSON shapes returned to clients. Ids are rendered as "_id" to
// stay wire compatible with existing web clients.

type UserView struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	Avatar          string    `json:"avatar"`
	Phone           string    `json:"phone"`
	Verified        bool      `json:"verified"`
	Rating          float64   `json:"rating"`
	SavedProperties []string  `json:"savedProperties"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newUserView(user store.User) UserView {
	return UserView{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		Avatar:          user.Avatar,
		Phone:           user.Phone,
		Verified:        user.Verified,
		Rating:          user.Rating,
		SavedProperties: nonNilStrings(user.SavedProperties),
		CreatedAt:       user.CreatedAt,
	}
}

// ListerView is the lister attached to a listing.
type ListerView struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Verified bool    `json:"verified"`
	Phone    string  `json:"phone"`
	Avatar   string  `json:"avatar"`
	Rating   float64 `json:"rating"`
}

type ParticipantView struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Avatar   string `json:"avatar"`
	Verified bool   `json:"verified"`
}

type SenderView struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type LocationView struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type StatsView struct {
	Views     int64 `json:"views"`
	Saves     int64 `json:"saves"`
	Inquiries int64 `json:"inquiries"`
}

type PropertyView struct {
	ID           string        `json:"_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Price        float64       `json:"price"`
	DealType     string        `json:"dealType"`
	PropertyType string        `json:"propertyType"`
	Beds         int           `json:"beds"`
	Baths        int           `json:"baths"`
	Area         float64       `json:"area"`
	City         string        `json:"city"`
	Locality     string        `json:"locality"`
	Address      string        `json:"address"`
	Pincode      string        `json:"pincode"`
	Images       []string      `json:"images"`
	Amenities    []string      `json:"amenities"`
	Highlights   []string      `json:"highlights"`
	Furnishing   string        `json:"furnishing"`
	Status       string        `json:"status"`
	ListedBy     ListerView    `json:"listedBy"`
	Stats        StatsView     `json:"stats"`
	Location     *LocationView `json:"location,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// PropertySummary is the listing attached to a chat.
type PropertySummary struct {
	ID       string   `json:"_id"`
	Title    string   `json:"title"`
	Images   []string `json:"images"`
	Locality string   `json:"locality"`
	City     string   `json:"city"`
	Price    float64  `json:"price"`
	DealType string   `json:"dealType"`
}

type MessageView struct {
	ID        string     `json:"_id"`
	Sender    SenderView `json:"sender"`
	Text      string     `json:"text"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ChatView struct {
	ID              string            `json:"_id"`
	Property        *PropertySummary  `json:"property"`
	Participants    []ParticipantView `json:"participants"`
	Messages        []MessageView     `json:"messages"`
	LastMessage     string            `json:"lastMessage"`
	LastMessageTime time.Time         `json:"lastMessageTime"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func newPropertyView(p store.Property, lister ListerView) PropertyView {
	view := PropertyView{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		DealType:     p.DealType,
		PropertyType: p.PropertyType,
		Beds:         p.Beds,
		Baths:        p.Baths,
		Area:         p.Area,
		City:         p.City,
		Locality:     p.Locality,
		Address:      p.Address,
		Pincode:      p.Pincode,
		Images:       nonNilStrings(p.Images),
		Amenities:    nonNilStrings(p.Amenities),
		Highlights:   nonNilStrings(p.Highlights),
		Furnishing:   p.Furnishing,
		Status:       p.Status,
		ListedBy:     lister,
		Stats: StatsView{
			Views:     p.Stats.Views,
			Saves:     p.Stats.Saves,
			Inquiries: p.Stats.Inquiries,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Location != nil {
		view.Location = &LocationView{Lat: p.Location.Lat, Lng: p.Location.Lng}
	}
	return view
}

func newPropertySummary(p store.Property) *PropertySummary {
	return &PropertySummary{
		ID:       p.ID,
		Title:    p.Title,
		Images:   nonNilStrings(p.Images),
		Locality: p.Locality,
		City:     p.City,
		Price:    p.Price,
		DealType: p.DealType,
	}
}

// directory resolves user ids to users for populating views. Unknown ids
// render as a bare id.
type directory map[string]store.User

func (s *Service) loadDirectory(ctx context.Context, ids []string) (directory, error) {
	users, err := s.store.ListUsersByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	dir := make(directory, len(users))
	for _, user := range users {
		dir[user.ID] = user
	}
	return dir, nil
}

func (d directory) lister(id string) ListerView {
	user, ok := d[id]
	if !ok {
		return ListerView{ID: id}
	}
	return ListerView{
		ID:       user.ID,
		Name:     user.Name,
		Role:     user.Role,
		Verified: user.Verified,
		Phone:    user.Phone,
		Avatar:   user.Avatar,
		Rating:   user.Rating,
	}
}

func (d directory) participant(id string) ParticipantView {
	user, ok := d[id]
	if !ok {
		return ParticipantView{ID: id}
	}
	return ParticipantView{
		ID:       user.ID,
		Name:     user.Name,
		Role:     user.Role,
		Avatar:   user.Avatar,
		Verified: user.Verified,
	}
}

func (d directory) sender(id string) SenderView {
	user, ok := d[id]
	if !ok {
		return SenderView{ID: id}
	}
	return SenderView{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
}

func (s *Service) propertyViews(ctx context.Context, items []store.Property) ([]PropertyView, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ListedBy)
	}
	dir, err := s.loadDirectory(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]PropertyView, 0, len(items))
	for _, item := range items {
		views = append(views, newPropertyView(item, dir.lister(item.ListedBy)))
	}
	return views, nil
}

func (s *Service) propertyView(ctx context.Context, item store.Property) (PropertyView, error) {
	views, err := s.propertyViews(ctx, []store.Property{item})
	if err != nil {
		return PropertyView{}, err
	}
	return views[0], nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
