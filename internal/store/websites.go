package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentcal/api/internal/content"
)

// WebsiteStore lists and creates the sites a user plans for.
type WebsiteStore struct {
	db *sql.DB
}

func NewWebsiteStore(db *sql.DB) *WebsiteStore {
	return &WebsiteStore{db: db}
}

func (s *WebsiteStore) ListWebsites(ctx context.Context, userID string) ([]Website, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, url, created_at
		FROM websites
		WHERE user_id = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list websites: %v", content.ErrTransport, err)
	}
	defer rows.Close()

	websites := make([]Website, 0)
	for rows.Next() {
		var site Website
		if err := rows.Scan(&site.ID, &site.UserID, &site.Name, &site.URL, &site.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan website: %v", content.ErrTransport, err)
		}
		websites = append(websites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate websites: %v", content.ErrTransport, err)
	}
	return websites, nil
}

func (s *WebsiteStore) GetWebsite(ctx context.Context, userID, websiteID string) (Website, error) {
	var site Website
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, url, created_at
		FROM websites
		WHERE id = $1 AND user_id = $2
	`, websiteID, userID).Scan(&site.ID, &site.UserID, &site.Name, &site.URL, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Website{}, ErrNotFound
	}
	if err != nil {
		return Website{}, fmt.Errorf("%w: get website: %v", content.ErrTransport, err)
	}
	return site, nil
}

func (s *WebsiteStore) CreateWebsite(ctx context.Context, userID, name, url string) (Website, error) {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(userID) == "" || name == "" {
		return Website{}, fmt.Errorf("%w: website name is required", content.ErrValidation)
	}
	site := Website{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		URL:       strings.TrimSpace(url),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO websites (id, user_id, name, url, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, site.ID, site.UserID, site.Name, site.URL, site.CreatedAt)
	if err != nil {
		return Website{}, fmt.Errorf("%w: insert website: %v", content.ErrTransport, err)
	}
	return site, nil
}

// Ping checks database connectivity for readiness probes.
func (s *WebsiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
