// Package search indexes content items for keyword search. Meilisearch is
// used when reachable; Postgres full-text search is the fallback.
package search

import (
	"context"
	"time"

	"contentcal/api/internal/content"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Snippet     string              `json:"snippet"`
	ContentType content.ContentType `json:"contentType"`
	DueDate     string              `json:"dueDate"`
	Completed   bool                `json:"completed"`
}

// Query describes a search request. Results never cross tenants.
type Query struct {
	Text        string
	Tenant      content.Tenant
	ContentType content.ContentType // empty = all types
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// ItemRecord is the data we index for a content item.
type ItemRecord struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	WebsiteID    string   `json:"websiteId"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Objective    string   `json:"objective"`
	ContentType  string   `json:"contentType"`
	ContentStyle string   `json:"contentStyle"`
	Keywords     []string `json:"keywords"`
	DueDate      string   `json:"dueDate"`
	Completed    bool     `json:"completed"`
}

// RecordFor flattens an item for indexing under tenant.
func RecordFor(tenant content.Tenant, item content.Item) ItemRecord {
	keywords := item.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return ItemRecord{
		ID:           item.ID,
		UserID:       tenant.UserID,
		WebsiteID:    tenant.WebsiteID,
		Title:        item.Title,
		Description:  item.Description,
		Objective:    item.Objective,
		ContentType:  string(item.ContentType),
		ContentStyle: string(item.ContentStyle),
		Keywords:     keywords,
		DueDate:      item.DueDate.UTC().Format(time.DateOnly),
		Completed:    item.Completed,
	}
}

func recordsFor(tenant content.Tenant, plan content.Plan) []ItemRecord {
	records := make([]ItemRecord, 0, len(plan))
	for _, item := range plan {
		records = append(records, RecordFor(tenant, item))
	}
	return records
}
