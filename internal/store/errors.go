package store

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrLockRequired is returned when an update is not covered by a live lock.
	ErrLockRequired = errors.New("a live edit lock is required")
	// ErrLockHeld is returned when another lock row already exists for the item.
	ErrLockHeld = errors.New("content item is already locked")
)
