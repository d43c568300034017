package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxListings = "estate_listings"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client    meili.ServiceManager
	healthy   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

var errUnavailable = errors.New("meilisearch unhealthy")

// NewMeili creates a Meilisearch client and configures the listing index.
// An unreachable server is not an error; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxListings,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxListings, err)
	}

	index := m.client.Index(idxListings)
	filterable := []interface{}{"dealType", "propertyType", "city", "price", "beds"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxListings, err)
	}
	searchable := []string{"title", "city", "locality", "address", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxListings, err)
	}
}

const (
	healthInterval = 10 * time.Second
	indexBatchSize = 500
)

// healthLoop probes the server until Close. Settings are reapplied whenever the
// server comes back, since a restarted instance may have lost the index.
func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if m.probe() {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// probe records the current health and reports an unhealthy to healthy transition.
func (m *Meili) probe() bool {
	_, err := m.client.Health()
	was := m.healthy.Swap(err == nil)
	if err != nil && was {
		log.Printf("search: meilisearch went unhealthy: %v", err)
	}
	return err == nil && !was
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.Healthy() {
		return nil, 0, errUnavailable
	}

	request := &meili.SearchRequest{
		Limit:                 int64(max(q.Limit, 1)),
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"title", "description"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if filter := dealTypeFilter(q.DealType); filter != "" {
		request.Filter = filter
	}

	resp, err := m.client.Index(idxListings).Search(q.Text, request)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func dealTypeFilter(dealType string) string {
	if dealType == "" || dealType == "all" {
		return ""
	}
	return fmt.Sprintf("dealType = %q", dealType)
}

func hitToResult(hit meili.Hit) Result {
	formatted := hitField[map[string]json.RawMessage](hit, "_formatted")
	highlighted := func(key string) string {
		if value := strings.TrimSpace(hitField[string](formatted, key)); value != "" {
			return value
		}
		return hitField[string](hit, key)
	}
	return Result{
		ID:           hitField[string](hit, "id"),
		Title:        highlighted("title"),
		Snippet:      highlighted("description"),
		City:         hitField[string](hit, "city"),
		Locality:     hitField[string](hit, "locality"),
		DealType:     hitField[string](hit, "dealType"),
		PropertyType: hitField[string](hit, "propertyType"),
		Price:        hitField[float64](hit, "price"),
		Beds:         int(hitField[float64](hit, "beds")),
		Image:        hitField[string](hit, "image"),
	}
}

// hitField decodes one attribute of a hit, returning the zero value when the
// attribute is missing or has another type.
func hitField[T any](hit map[string]json.RawMessage, key string) T {
	var value T
	raw, ok := hit[key]
	if !ok {
		return value
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		var zero T
		return zero
	}
	return value
}

// IndexListing adds or replaces a listing in the index.
func (m *Meili) IndexListing(record ListingRecord) error {
	_, err := m.client.Index(idxListings).AddDocuments([]ListingRecord{record}, nil)
	return err
}

func (m *Meili) DeleteListing(id string) error {
	_, err := m.client.Index(idxListings).DeleteDocument(id, nil)
	return err
}

// IndexListings bulk-indexes listings in batches.
func (m *Meili) IndexListings(records []ListingRecord) error {
	for start := 0; start < len(records); start += indexBatchSize {
		end := min(start+indexBatchSize, len(records))
		if _, err := m.client.Index(idxListings).AddDocuments(records[start:end], nil); err != nil {
			return fmt.Errorf("index listings %d-%d: %w", start, end, err)
		}
	}
	return nil
}
