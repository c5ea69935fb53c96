package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
)

// itemColumns selects a row in the order scanItem expects. Keywords travel
// as JSON text so they decode the same way from every driver.
const itemColumns = `id, title, description, objective, due_date, completed, content_type, content_style,
	COALESCE(array_to_json(keywords), '[]'::json)::text`

const insertColumns = `id, user_id, website_id, title, description, objective, due_date, completed, content_type, content_style, keywords`

// argsPerRow is the number of bind parameters per inserted row.
const argsPerRow = 11

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PlanItemStore is the remote persistence adapter for content_plan_items.
type PlanItemStore struct {
	db    *sql.DB
	log   logger.Logger
	newID func() string
	now   func() time.Time
}

func NewPlanItemStore(db *sql.DB, log logger.Logger) *PlanItemStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &PlanItemStore{
		db:    db,
		log:   log.With(logger.String("component", "plan_items")),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// Load returns the tenant's items ordered by due date.
func (s *PlanItemStore) Load(ctx context.Context, tenant content.Tenant) (content.Plan, error) {
	if !tenant.Valid() {
		return nil, fmt.Errorf("%w: tenant is required", content.ErrValidation)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM content_plan_items
		WHERE user_id = $1 AND website_id = $2
		ORDER BY due_date ASC, id ASC
	`, tenant.UserID, tenant.WebsiteID)
	if err != nil {
		return nil, fmt.Errorf("%w: load plan items: %v", content.ErrTransport, err)
	}
	defer rows.Close()

	plan, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Add inserts one item, replacing a provisional id with a stable one.
func (s *PlanItemStore) Add(ctx context.Context, item content.Item, tenant content.Tenant) (content.Item, error) {
	if !tenant.Valid() {
		return content.Item{}, fmt.Errorf("%w: tenant is required", content.ErrValidation)
	}
	stored, err := insertBatch(ctx, s.db, s.withStableIDs(content.Plan{item}), tenant)
	if err != nil {
		s.log.Error("Add plan item failed", logger.Error(err), logger.Tenant(tenant.UserID, tenant.WebsiteID))
		return content.Item{}, err
	}
	if len(stored) != 1 {
		return content.Item{}, fmt.Errorf("%w: insert returned %d rows", content.ErrIntegrity, len(stored))
	}
	return stored[0], nil
}

// AddMany inserts all items in a single statement. Either every row is
// written or none is.
func (s *PlanItemStore) AddMany(ctx context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error) {
	return s.writeBatch(ctx, items, tenant, false)
}

// ReplaceAll deletes the tenant's items and inserts items in one transaction.
func (s *PlanItemStore) ReplaceAll(ctx context.Context, items content.Plan, tenant content.Tenant) (content.Plan, error) {
	return s.writeBatch(ctx, items, tenant, true)
}

func (s *PlanItemStore) writeBatch(ctx context.Context, items content.Plan, tenant content.Tenant, replace bool) (content.Plan, error) {
	if !tenant.Valid() {
		return nil, fmt.Errorf("%w: tenant is required", content.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin batch: %v", content.ErrTransport, err)
	}
	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM content_plan_items WHERE user_id = $1 AND website_id = $2`, tenant.UserID, tenant.WebsiteID); err != nil {
			_ = tx.Rollback()
			s.log.Error("Clear tenant plan failed", logger.Error(err), logger.Tenant(tenant.UserID, tenant.WebsiteID))
			return nil, fmt.Errorf("%w: clear plan items: %v", content.ErrTransport, err)
		}
	}

	stored := content.Plan{}
	if len(items) > 0 {
		stored, err = insertBatch(ctx, tx, s.withStableIDs(items), tenant)
		if err != nil {
			_ = tx.Rollback()
			s.log.Error("Batch insert failed", logger.Error(err), logger.Int("items", len(items)), logger.Tenant(tenant.UserID, tenant.WebsiteID))
			return nil, err
		}
		if len(stored) != len(items) {
			_ = tx.Rollback()
			return nil, fmt.Errorf("%w: inserted %d of %d items", content.ErrIntegrity, len(stored), len(items))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit batch: %v", content.ErrTransport, err)
	}
	stored.SortByDueDate()
	return stored, nil
}

// Update replaces every field of an item. The caller must hold a live lock
// on the item, identified by lockToken.
func (s *PlanItemStore) Update(ctx context.Context, item content.Item, tenant content.Tenant, lockToken string) error {
	if !tenant.Valid() {
		return fmt.Errorf("%w: tenant is required", content.ErrValidation)
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(lockToken) == "" {
		return ErrLockRequired
	}
	keywords, err := keywordsArg(item.Keywords)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin update: %v", content.ErrTransport, err)
	}

	var held bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM content_locks
			WHERE id = $1 AND content_id = $2 AND user_id = $3 AND expires_at >= $4
		)
	`, lockToken, item.ID, tenant.UserID, s.now()).Scan(&held)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: check lock: %v", content.ErrTransport, err)
	}
	if !held {
		_ = tx.Rollback()
		return ErrLockRequired
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE content_plan_items
		SET title = $4, description = $5, objective = $6, due_date = $7, completed = $8,
			content_type = $9, content_style = $10,
			keywords = ARRAY(SELECT jsonb_array_elements_text($11::jsonb)),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND website_id = $3
	`, item.ID, tenant.UserID, tenant.WebsiteID, item.Title, item.Description, item.Objective,
		item.DueDate, item.Completed, string(item.ContentType), string(item.ContentStyle), keywords)
	if err != nil {
		_ = tx.Rollback()
		s.log.Error("Update plan item failed", logger.Error(err), logger.String("item_id", item.ID))
		return fmt.Errorf("%w: update plan item: %v", content.ErrTransport, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		_ = tx.Rollback()
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit update: %v", content.ErrTransport, err)
	}
	return nil
}

// SetCompleted flips the completion flag of a single tenant item.
func (s *PlanItemStore) SetCompleted(ctx context.Context, itemID string, tenant content.Tenant, completed bool) error {
	if !tenant.Valid() {
		return fmt.Errorf("%w: tenant is required", content.ErrValidation)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE content_plan_items SET completed = $4, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND website_id = $3
	`, itemID, tenant.UserID, tenant.WebsiteID, completed)
	if err != nil {
		return fmt.Errorf("%w: set completed: %v", content.ErrTransport, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an item by id alone. Callers must have checked ownership.
func (s *PlanItemStore) Delete(ctx context.Context, itemID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM content_plan_items WHERE id = $1`, itemID)
	if err != nil {
		s.log.Error("Delete plan item failed", logger.Error(err), logger.String("item_id", itemID))
		return fmt.Errorf("%w: delete plan item: %v", content.ErrTransport, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a single tenant item.
func (s *PlanItemStore) Get(ctx context.Context, itemID string, tenant content.Tenant) (content.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM content_plan_items
		WHERE id = $1 AND user_id = $2 AND website_id = $3
	`, itemID, tenant.UserID, tenant.WebsiteID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Item{}, ErrNotFound
	}
	return item, err
}

func (s *PlanItemStore) withStableIDs(items content.Plan) content.Plan {
	prepared := items.Clone()
	for i := range prepared {
		if prepared[i].ID == "" || prepared[i].IsProvisional() {
			prepared[i].ID = s.newID()
		}
	}
	return prepared
}

func insertBatch(ctx context.Context, q queryer, items content.Plan, tenant content.Tenant) (content.Plan, error) {
	values := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*argsPerRow)
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		keywords, err := keywordsArg(item.Keywords)
		if err != nil {
			return nil, err
		}
		values = append(values, rowPlaceholders(i*argsPerRow))
		args = append(args, item.ID, tenant.UserID, tenant.WebsiteID, item.Title, item.Description, item.Objective,
			item.DueDate, item.Completed, string(item.ContentType), string(item.ContentStyle), keywords)
	}

	rows, err := q.QueryContext(ctx, `INSERT INTO content_plan_items (`+insertColumns+`) VALUES `+
		strings.Join(values, ", ")+` RETURNING `+itemColumns, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: insert plan items: %v", content.ErrTransport, err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func rowPlaceholders(offset int) string {
	parts := make([]string, 0, argsPerRow)
	for j := 1; j < argsPerRow; j++ {
		parts = append(parts, fmt.Sprintf("$%d", offset+j))
	}
	parts = append(parts, fmt.Sprintf("ARRAY(SELECT jsonb_array_elements_text($%d::jsonb))", offset+argsPerRow))
	return "(" + strings.Join(parts, ", ") + ")"
}

func keywordsArg(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("%w: encode keywords: %v", content.ErrValidation, err)
	}
	return string(raw), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItems(rows *sql.Rows) (content.Plan, error) {
	plan := make(content.Plan, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		plan = append(plan, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate plan items: %v", content.ErrTransport, err)
	}
	return plan, nil
}

// scanItem maps a storage row onto the domain item.
func scanItem(row rowScanner) (content.Item, error) {
	var (
		item         content.Item
		contentType  string
		contentStyle string
		keywords     string
	)
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Objective, &item.DueDate,
		&item.Completed, &contentType, &contentStyle, &keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Item{}, err
	}
	if err != nil {
		return content.Item{}, fmt.Errorf("%w: scan plan item: %v", content.ErrTransport, err)
	}

	item.ContentType = content.ContentType(contentType)
	if !item.ContentType.Valid() {
		return content.Item{}, fmt.Errorf("%w: row %s has content type %q", content.ErrIntegrity, item.ID, contentType)
	}
	item.ContentStyle = content.ContentStyle(contentStyle)
	if !item.ContentStyle.Valid() {
		return content.Item{}, fmt.Errorf("%w: row %s has content style %q", content.ErrIntegrity, item.ID, contentStyle)
	}
	if err := json.Unmarshal([]byte(keywords), &item.Keywords); err != nil {
		return content.Item{}, fmt.Errorf("%w: row %s keywords: %v", content.ErrIntegrity, item.ID, err)
	}
	return item, nil
}
