package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"estate/api/internal/store"
)

type fakeIndex struct {
	mu        sync.Mutex
	healthy   bool
	searchErr error
	results   []Result
	indexed   []ListingRecord
	deleted   []string
	done      chan struct{}
}

func newFakeIndex(healthy bool) *fakeIndex {
	return &fakeIndex{healthy: healthy, done: make(chan struct{}, 8)}
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(q Query) ([]Result, int, error) {
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	return f.results, len(f.results), nil
}

func (f *fakeIndex) IndexListing(record ListingRecord) error {
	f.mu.Lock()
	f.indexed = append(f.indexed, record)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeIndex) IndexListings(records []ListingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, records...)
	return nil
}

func (f *fakeIndex) DeleteListing(id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeIndex) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background index call")
	}
}

func fallbackReturning(results []Result, err error, calls *int) Fallback {
	return func(ctx context.Context, q Query) ([]Result, int, error) {
		*calls++
		return results, len(results), err
	}
}

func TestSearchUsesIndexWhenHealthy(t *testing.T) {
	index := newFakeIndex(true)
	index.results = []Result{{ID: "prop_1", Title: "Sea view"}}
	calls := 0
	svc := NewService(index, fallbackReturning(nil, nil, &calls))

	resp, err := svc.Search(context.Background(), Query{Text: "sea"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Source != SourceMeili || resp.Total != 1 || calls != 0 {
		t.Fatalf("expected index hit without fallback, got %+v calls=%d", resp, calls)
	}
}

func TestSearchFallsBack(t *testing.T) {
	cases := []struct {
		name  string
		index Index
	}{
		{name: "no index configured", index: nil},
		{name: "index unhealthy", index: newFakeIndex(false)},
		{name: "index error", index: func() Index {
			idx := newFakeIndex(true)
			idx.searchErr = errors.New("timeout")
			return idx
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			svc := NewService(tc.index, fallbackReturning([]Result{{ID: "prop_2"}}, nil, &calls))
			resp, err := svc.Search(context.Background(), Query{Text: "villa"})
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if resp.Source != SourceStore || calls != 1 || len(resp.Results) != 1 {
				t.Fatalf("expected store fallback, got %+v calls=%d", resp, calls)
			}
		})
	}
}

func TestSearchFallbackErrorAndEmptyResults(t *testing.T) {
	calls := 0
	svc := NewService(nil, fallbackReturning(nil, errors.New("db down"), &calls))
	if _, err := svc.Search(context.Background(), Query{Text: "x"}); err == nil {
		t.Fatal("expected fallback error to surface")
	}

	svc = NewService(nil, fallbackReturning(nil, nil, &calls))
	resp, err := svc.Search(context.Background(), Query{Text: "x"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Results == nil {
		t.Fatal("expected empty, non-nil results")
	}
}

func TestIndexAndDeleteAreAsync(t *testing.T) {
	index := newFakeIndex(true)
	svc := NewService(index, nil)

	svc.IndexListing(NewListingRecord(store.Property{ID: "prop_1", Title: "Flat", Images: []string{"/uploads/properties/a.jpg"}}))
	index.wait(t)
	svc.DeleteListing("prop_1")
	index.wait(t)

	index.mu.Lock()
	defer index.mu.Unlock()
	if len(index.indexed) != 1 || index.indexed[0].Image != "/uploads/properties/a.jpg" {
		t.Fatalf("unexpected indexed records %+v", index.indexed)
	}
	if len(index.deleted) != 1 || index.deleted[0] != "prop_1" {
		t.Fatalf("unexpected deletes %+v", index.deleted)
	}
}

func TestWritesSkippedWhenIndexUnhealthy(t *testing.T) {
	index := newFakeIndex(false)
	svc := NewService(index, nil)
	svc.IndexListing(ListingRecord{ID: "prop_1"})
	svc.DeleteListing("prop_1")
	svc.ReindexAll([]ListingRecord{{ID: "prop_1"}})

	index.mu.Lock()
	defer index.mu.Unlock()
	if len(index.indexed) != 0 || len(index.deleted) != 0 {
		t.Fatal("expected no index writes while unhealthy")
	}
}
