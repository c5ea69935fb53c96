package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"contentcal/api/internal/content"
)

const uniqueViolation = "23505"

// LockStore persists edit locks in content_locks.
type LockStore struct {
	db *sql.DB
}

func NewLockStore(db *sql.DB) *LockStore {
	return &LockStore{db: db}
}

// DeleteExpired removes every lock whose expiry is before now and reports
// how many rows went away.
func (s *LockStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM content_locks WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep locks: %v", content.ErrTransport, err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// Get returns the lock on contentID or nil when there is none.
func (s *LockStore) Get(ctx context.Context, contentID string) (*content.Lock, error) {
	var lock content.Lock
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content_id, user_id, locked_at, expires_at
		FROM content_locks
		WHERE content_id = $1
	`, contentID).Scan(&lock.ID, &lock.ContentID, &lock.UserID, &lock.LockedAt, &lock.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get lock: %v", content.ErrTransport, err)
	}
	return &lock, nil
}

// Insert writes a new lock row. A concurrent holder surfaces as ErrLockHeld.
func (s *LockStore) Insert(ctx context.Context, lock content.Lock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_locks (id, content_id, user_id, locked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, lock.ID, lock.ContentID, lock.UserID, lock.LockedAt, lock.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrLockHeld
		}
		return fmt.Errorf("%w: insert lock: %v", content.ErrTransport, err)
	}
	return nil
}

// Delete removes the lock on contentID regardless of holder.
func (s *LockStore) Delete(ctx context.Context, contentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM content_locks WHERE content_id = $1`, contentID)
	if err != nil {
		return false, fmt.Errorf("%w: delete lock: %v", content.ErrTransport, err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// Extend sets a new expiry on the lock for contentID, live or not.
func (s *LockStore) Extend(ctx context.Context, contentID string, expiresAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE content_locks SET expires_at = $2 WHERE content_id = $1`, contentID, expiresAt)
	if err != nil {
		return false, fmt.Errorf("%w: renew lock: %v", content.ErrTransport, err)
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}
