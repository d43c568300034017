package app

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"slices"

	"estate/api/internal/listing"
	"estate/api/internal/rbac"
	"estate/api/internal/search"
	"estate/api/internal/store"
	"estate/api/internal/util"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

func (s *Service) ListProperties(ctx context.Context, filter listing.Filter) ([]PropertyView, error) {
	query, err := listing.Build(ctx, filter, s.store)
	if err != nil {
		return nil, err
	}
	items, err := s.store.FindProperties(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.propertyViews(ctx, items)
}

// GetProperty returns a listing with its view counter already incremented.
func (s *Service) GetProperty(ctx context.Context, propertyID string) (PropertyView, error) {
	item, err := s.store.IncrementPropertyStat(ctx, propertyID, store.StatViews, 1)
	if errors.Is(err, store.ErrNotFound) {
		return PropertyView{}, notFound("Property not found")
	}
	if err != nil {
		return PropertyView{}, err
	}
	return s.propertyView(ctx, item)
}

func (s *Service) CreateProperty(ctx context.Context, actor Session, patch store.PropertyPatch, files []*multipart.FileHeader) (PropertyView, error) {
	if err := requireRole(actor, rbac.ActionCreateListing); err != nil {
		return PropertyView{}, err
	}
	if len(files) == 0 {
		return PropertyView{}, validation("At least 1 property image is required", nil)
	}
	item, err := newProperty(patch)
	if err != nil {
		return PropertyView{}, err
	}

	images, err := s.uploads.SaveImages(ctx, files)
	if err != nil {
		return PropertyView{}, err
	}
	item.ID = util.NewID("prop")
	item.ListedBy = actor.UserID
	item.Images = images
	if err := s.store.InsertProperty(ctx, item); err != nil {
		s.uploads.Remove(ctx, images)
		return PropertyView{}, err
	}

	created, err := s.store.GetProperty(ctx, item.ID)
	if err != nil {
		return PropertyView{}, err
	}
	s.syncIndex(created)
	return s.propertyView(ctx, created)
}

// UpdateProperty applies an owner's changes. Images are replaced only when new
// files were uploaded; replaced files are removed from storage.
func (s *Service) UpdateProperty(ctx context.Context, actor Session, propertyID string, patch store.PropertyPatch, files []*multipart.FileHeader) (PropertyView, error) {
	if err := requireRole(actor, rbac.ActionManageListing); err != nil {
		return PropertyView{}, err
	}
	current, err := s.ownedProperty(ctx, actor, propertyID)
	if err != nil {
		return PropertyView{}, err
	}
	if err := validatePatch(patch); err != nil {
		return PropertyView{}, err
	}

	patch.Images = nil
	if len(files) > 0 {
		images, err := s.uploads.SaveImages(ctx, files)
		if err != nil {
			return PropertyView{}, err
		}
		patch.Images = images
	}

	updated, err := s.store.UpdateProperty(ctx, propertyID, patch)
	if err != nil {
		s.uploads.Remove(ctx, patch.Images)
		if errors.Is(err, store.ErrNotFound) {
			return PropertyView{}, notFound("Property not found")
		}
		return PropertyView{}, err
	}
	if patch.Images != nil {
		s.uploads.Remove(ctx, dropped(current.Images, updated.Images))
	}
	s.syncIndex(updated)
	return s.propertyView(ctx, updated)
}

// DeleteProperty hard deletes a listing. Chats about it are kept.
func (s *Service) DeleteProperty(ctx context.Context, actor Session, propertyID string) error {
	if err := requireRole(actor, rbac.ActionManageListing); err != nil {
		return err
	}
	current, err := s.ownedProperty(ctx, actor, propertyID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProperty(ctx, propertyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Property not found")
		}
		return err
	}
	s.search.DeleteListing(propertyID)
	s.uploads.Remove(ctx, current.Images)
	return nil
}

// MyProperties lists the actor's listings in every status, newest first.
func (s *Service) MyProperties(ctx context.Context, actor Session) ([]PropertyView, error) {
	if err := requireRole(actor, rbac.ActionManageListing); err != nil {
		return nil, err
	}
	items, err := s.store.ListPropertiesByLister(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return s.propertyViews(ctx, items)
}

// ToggleSave flips propertyID in the actor's saved set and returns the new set.
// The saves counter moves only when this call changed the set.
func (s *Service) ToggleSave(ctx context.Context, actorID, propertyID string) ([]string, error) {
	toggle, err := s.store.ToggleSavedProperty(ctx, actorID, propertyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	if toggle.Changed {
		delta := int64(-1)
		if toggle.Saved {
			delta = 1
		}
		if _, err := s.store.IncrementPropertyStat(ctx, propertyID, store.StatSaves, delta); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("count save: %w", err)
		}
	}
	return nonNilStrings(toggle.PropertyIDs), nil
}

func (s *Service) Search(ctx context.Context, q search.Query) (search.Response, error) {
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}
	if q.Limit > maxSearchLimit {
		q.Limit = maxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if !slices.Contains(store.DealTypes, q.DealType) {
		q.DealType = ""
	}
	return s.search.Search(ctx, q)
}

// searchFallback answers a search from the primary store using the listing
// query with only the search term set.
func (s *Service) searchFallback(ctx context.Context, q search.Query) ([]search.Result, int, error) {
	query, err := listing.Build(ctx, listing.Filter{SearchQuery: q.Text, DealType: q.DealType}, s.store)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.FindProperties(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	total := len(items)
	start := min(q.Offset, total)
	end := min(start+q.Limit, total)
	results := make([]search.Result, 0, end-start)
	for _, item := range items[start:end] {
		results = append(results, search.ResultFromProperty(item))
	}
	return results, total, nil
}

func (s *Service) ownedProperty(ctx context.Context, actor Session, propertyID string) (store.Property, error) {
	item, err := s.store.GetProperty(ctx, propertyID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Property{}, notFound("Property not found")
	}
	if err != nil {
		return store.Property{}, err
	}
	if item.ListedBy != actor.UserID {
		return store.Property{}, unauthorized("Not authorized")
	}
	return item, nil
}

func (s *Service) syncIndex(item store.Property) {
	if item.Status == store.StatusActive {
		s.search.IndexListing(search.NewListingRecord(item))
		return
	}
	s.search.DeleteListing(item.ID)
}

func requireRole(actor Session, action rbac.Action) error {
	if !rbac.Can(rbac.Role(actor.Role), action) {
		return forbidden(fmt.Sprintf("User role %s is not authorized to access this route", actor.Role))
	}
	return nil
}

// dropped returns the entries of before that are absent from after.
func dropped(before, after []string) []string {
	var out []string
	for _, value := range before {
		if !slices.Contains(after, value) {
			out = append(out, value)
		}
	}
	return out
}
