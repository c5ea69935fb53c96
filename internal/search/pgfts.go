package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"contentcal/api/internal/content"
)

const itemDocument = `to_tsvector('english', title || ' ' || description || ' ' || objective || ' ' || array_to_string(keywords, ' '))`

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks the tenant's items with plainto_tsquery and ts_rank, with
// ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := itemDocument + ` @@ plainto_tsquery('english', $1) AND user_id = $2 AND website_id = $3`
	args := []any{q.Text, q.Tenant.UserID, q.Tenant.WebsiteID}
	if q.ContentType != "" {
		where += " AND content_type = $4"
		args = append(args, string(q.ContentType))
	}

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM content_plan_items WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title,
			ts_headline('english', description, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet,
			content_type, due_date, completed
		FROM content_plan_items
		WHERE %s
		ORDER BY ts_rank(%s, plainto_tsquery('english', $1)) DESC, due_date ASC
		LIMIT %d OFFSET %d`, where, itemDocument, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		var due time.Time
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &typ, &due, &r.Completed); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.ContentType = content.ContentType(typ)
		r.DueDate = due.UTC().Format(time.DateOnly)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every item for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ItemRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, website_id, title, description, objective, content_type, content_style,
			COALESCE(array_to_json(keywords), '[]'::json)::text, due_date, completed
		FROM content_plan_items
	`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	records := make([]ItemRecord, 0)
	for rows.Next() {
		var r ItemRecord
		var keywords string
		var due time.Time
		if err := rows.Scan(&r.ID, &r.UserID, &r.WebsiteID, &r.Title, &r.Description, &r.Objective,
			&r.ContentType, &r.ContentStyle, &keywords, &due, &r.Completed); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		r.Keywords = decodeKeywords(keywords)
		r.DueDate = due.UTC().Format(time.DateOnly)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return records, nil
}
