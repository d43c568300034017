package search

import (
	"context"
	"log"
)

const (
	SourceMeili = "meilisearch"
	SourceStore = "store"
)

// Fallback runs a search against the primary store when the index is unavailable.
type Fallback func(ctx context.Context, q Query) ([]Result, int, error)

// Index is the write side of a listing index.
type Index interface {
	Searcher
	IndexListing(record ListingRecord) error
	IndexListings(records []ListingRecord) error
	DeleteListing(id string) error
}

// Service tries the index first and falls back to the primary store.
type Service struct {
	index    Index
	fallback Fallback
}

// NewService creates a search service. index may be nil if Meilisearch is not configured.
func NewService(index Index, fallback Fallback) *Service {
	return &Service{index: index, fallback: fallback}
}

func (s *Service) indexReady() bool {
	return s != nil && s.index != nil && s.index.Healthy()
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	if s.indexReady() {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: SourceMeili}, nil
		}
		log.Printf("search: meilisearch error, falling back to store: %v", err)
	}

	results, total, err := s.fallback(ctx, q)
	if err != nil {
		return Response{}, err
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: SourceStore}, nil
}

// IndexListing indexes an active listing (fire-and-forget).
func (s *Service) IndexListing(record ListingRecord) {
	if !s.indexReady() {
		return
	}
	go func() {
		if err := s.index.IndexListing(record); err != nil {
			log.Printf("search: index listing %s: %v", record.ID, err)
		}
	}()
}

// DeleteListing removes a listing from the index (fire-and-forget).
func (s *Service) DeleteListing(id string) {
	if !s.indexReady() {
		return
	}
	go func() {
		if err := s.index.DeleteListing(id); err != nil {
			log.Printf("search: delete listing %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes every given listing to the index. Called during bootstrap.
func (s *Service) ReindexAll(records []ListingRecord) {
	if !s.indexReady() || len(records) == 0 {
		return
	}
	if err := s.index.IndexListings(records); err != nil {
		log.Printf("search: reindex listings: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
