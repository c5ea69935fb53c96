package content

import "time"

// Lock is an edit lock on a single content item. ID doubles as the token the
// holder presents when updating the item.
type Lock struct {
	ID        string    `json:"token"`
	ContentID string    `json:"contentId"`
	UserID    string    `json:"userId"`
	LockedAt  time.Time `json:"lockedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiredAt reports whether the lock is no longer valid at now.
func (l Lock) ExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
