// Package lock coordinates short-lived edit locks on content items.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentcal/api/internal/content"
	"contentcal/api/internal/logger"
	"contentcal/api/internal/store"
)

// DefaultTTL is how long an acquired lock stays live without renewal.
const DefaultTTL = 10 * time.Minute

var (
	// ErrLocked means another live lock exists for the item.
	ErrLocked = errors.New("content item is locked by another editor")
	// ErrStaleLockCleared means an expired lock was removed; the caller may
	// try again.
	ErrStaleLockCleared = errors.New("expired lock cleared, retry acquire")
)

// Repository is the lock persistence the manager needs.
type Repository interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Get(ctx context.Context, contentID string) (*content.Lock, error)
	Insert(ctx context.Context, lock content.Lock) error
	Delete(ctx context.Context, contentID string) (bool, error)
	Extend(ctx context.Context, contentID string, expiresAt time.Time) (bool, error)
}

type Manager struct {
	repo Repository
	ttl  time.Duration
	log  logger.Logger
	now  func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func NewManager(repo Repository, opts ...Option) *Manager {
	m := &Manager{
		repo: repo,
		ttl:  DefaultTTL,
		log:  logger.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.String("component", "lock_manager"))
	return m
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Acquire takes the edit lock on contentID for userID. Expired locks are
// swept first; an expired lock found on the item itself is removed and
// reported as ErrStaleLockCleared without re-acquiring in the same call.
func (m *Manager) Acquire(ctx context.Context, contentID, userID string) (content.Lock, error) {
	if strings.TrimSpace(contentID) == "" || strings.TrimSpace(userID) == "" {
		return content.Lock{}, fmt.Errorf("%w: content id and user id are required", content.ErrValidation)
	}

	now := m.now()
	if _, err := m.repo.DeleteExpired(ctx, now); err != nil {
		return content.Lock{}, err
	}

	existing, err := m.repo.Get(ctx, contentID)
	if err != nil {
		return content.Lock{}, err
	}
	if existing != nil {
		if existing.ExpiredAt(now) {
			if _, err := m.repo.Delete(ctx, contentID); err != nil {
				return content.Lock{}, err
			}
			m.log.Info("Cleared stale lock", logger.String("content_id", contentID), logger.String("holder", existing.UserID))
			return content.Lock{}, ErrStaleLockCleared
		}
		return content.Lock{}, ErrLocked
	}

	acquired := content.Lock{
		ID:        uuid.NewString(),
		ContentID: contentID,
		UserID:    userID,
		LockedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.Insert(ctx, acquired); err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return content.Lock{}, ErrLocked
		}
		return content.Lock{}, err
	}
	m.log.Debug("Lock acquired", logger.String("content_id", contentID), logger.String("user_id", userID))
	return acquired, nil
}

// Release removes the lock on contentID whoever holds it.
func (m *Manager) Release(ctx context.Context, contentID string) error {
	_, err := m.repo.Delete(ctx, contentID)
	return err
}

// Renew pushes the expiry to now+TTL. It reports false when no lock exists.
func (m *Manager) Renew(ctx context.Context, contentID string) (bool, error) {
	return m.repo.Extend(ctx, contentID, m.now().Add(m.ttl))
}

// HasLock reports whether a live lock exists on contentID.
func (m *Manager) HasLock(ctx context.Context, contentID string) (bool, error) {
	existing, err := m.Current(ctx, contentID)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// Current returns the live lock on contentID, or nil.
func (m *Manager) Current(ctx context.Context, contentID string) (*content.Lock, error) {
	existing, err := m.repo.Get(ctx, contentID)
	if err != nil || existing == nil {
		return nil, err
	}
	if existing.ExpiredAt(m.now()) {
		return nil, nil
	}
	return existing, nil
}

// Sweep deletes every expired lock.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	swept, err := m.repo.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		m.log.Info("Swept expired locks", logger.Int64("count", swept))
	}
	return swept, nil
}
