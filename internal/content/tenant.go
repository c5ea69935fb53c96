package content

import "strings"

// Tenant scopes remote items and locks to a (user, website) pair.
type Tenant struct {
	UserID    string
	WebsiteID string
}

func (t Tenant) Valid() bool {
	return strings.TrimSpace(t.UserID) != "" && strings.TrimSpace(t.WebsiteID) != ""
}

// Key is a stable identifier for the tenant usable in storage keys and paths.
func (t Tenant) Key() string {
	return t.UserID + ":" + t.WebsiteID
}
