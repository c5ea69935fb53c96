package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
)

const (
	idxItems = "contentcal_items"
	// tenantScanLimit bounds the id lookup used to prune a tenant's stale entries.
	tenantScanLimit = 1000
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     logger.Logger
}

// NewMeili creates a Meilisearch client and configures the items index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string, log logger.Logger) *Meili {
	if log == nil {
		log = logger.NewNop()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
		log:    log.With(logger.String("component", "meilisearch")),
	}

	if _, err := m.client.Health(); err != nil {
		m.log.Warn("Meilisearch unavailable", logger.String("url", url), logger.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxItems, PrimaryKey: "id"}); err != nil {
		m.log.Debug("Create index failed, may already exist", logger.String("index", idxItems), logger.Error(err))
	}

	index := m.client.Index(idxItems)
	filterable := []interface{}{"userId", "websiteId", "contentType", "completed"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.log.Warn("Update filterable attributes failed", logger.Error(err))
	}
	searchable := []string{"title", "keywords", "description", "objective"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn("Update searchable attributes failed", logger.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("Meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func tenantFilter(tenant content.Tenant) []string {
	return []string{
		fmt.Sprintf("userId = %q", tenant.UserID),
		fmt.Sprintf("websiteId = %q", tenant.WebsiteID),
	}
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	filters := tenantFilter(q.Tenant)
	if q.ContentType != "" {
		filters = append(filters, fmt.Sprintf("contentType = %q", string(q.ContentType)))
	}
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxItems,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			Filter:                filters,
			AttributesToHighlight: []string{"title", "description"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

// ReplaceTenant makes the index hold exactly records for tenant.
func (m *Meili) ReplaceTenant(tenant content.Tenant, records []ItemRecord) error {
	keep := make(map[string]struct{}, len(records))
	for _, r := range records {
		keep[r.ID] = struct{}{}
	}

	existing, err := m.tenantIDs(tenant)
	if err != nil {
		return err
	}
	for _, id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, err := m.client.Index(idxItems).DeleteDocument(id, nil); err != nil {
			return fmt.Errorf("delete stale item %s: %w", id, err)
		}
	}
	return m.IndexItems(records)
}

func (m *Meili) tenantIDs(tenant content.Tenant) ([]string, error) {
	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:             idxItems,
			Limit:                tenantScanLimit,
			Filter:               tenantFilter(tenant),
			AttributesToRetrieve: []string{"id"},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("list tenant items: %w", err)
	}
	var ids []string
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			if id := decodeString(hit, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// IndexItems adds or updates items in the search index.
func (m *Meili) IndexItems(records []ItemRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxItems).AddDocuments(records, nil)
	return err
}

// DeleteItem removes an item from the search index.
func (m *Meili) DeleteItem(id string) error {
	_, err := m.client.Index(idxItems).DeleteDocument(id, nil)
	return err
}

func hitToResult(hit meili.Hit) Result {
	var completed bool
	if raw, ok := hit["completed"]; ok {
		_ = json.Unmarshal(raw, &completed)
	}
	return Result{
		ID:          decodeString(hit, "id"),
		Title:       firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title")),
		Snippet:     firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description")),
		ContentType: content.ContentType(decodeString(hit, "contentType")),
		DueDate:     decodeString(hit, "dueDate"),
		Completed:   completed,
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
