// Package content defines the content item model shared by the planner,
// the persistence adapters and the reconciliation engine.
package content

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ProvisionalPrefix marks ids generated client-side that have not been
// persisted remotely yet.
const ProvisionalPrefix = "temp_"

type ContentType string

const (
	TypeBlog        ContentType = "blog"
	TypeSocial      ContentType = "social"
	TypeEmail       ContentType = "email"
	TypeInfographic ContentType = "infographic"
	TypeLandingPage ContentType = "landing-page"
)

// ContentTypes lists every content type in canonical generation order.
var ContentTypes = []ContentType{TypeBlog, TypeSocial, TypeEmail, TypeInfographic, TypeLandingPage}

func (t ContentType) Valid() bool {
	switch t {
	case TypeBlog, TypeSocial, TypeEmail, TypeInfographic, TypeLandingPage:
		return true
	}
	return false
}

func (t *ContentType) UnmarshalText(text []byte) error {
	value := ContentType(text)
	if !value.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrIntegrity, string(text))
	}
	*t = value
	return nil
}

type ContentStyle string

const (
	StyleKnowledge   ContentStyle = "knowledge"
	StyleGuide       ContentStyle = "guide"
	StyleInfographic ContentStyle = "infographic"
	StyleStory       ContentStyle = "story"
	StyleStats       ContentStyle = "stats"
	StyleTestimonial ContentStyle = "testimonial"
)

func (s ContentStyle) Valid() bool {
	switch s {
	case StyleKnowledge, StyleGuide, StyleInfographic, StyleStory, StyleStats, StyleTestimonial:
		return true
	}
	return false
}

func (s *ContentStyle) UnmarshalText(text []byte) error {
	value := ContentStyle(text)
	if !value.Valid() {
		return fmt.Errorf("%w: unknown content style %q", ErrIntegrity, string(text))
	}
	*s = value
	return nil
}

// ParseContentType validates a raw content type coming from a caller.
func ParseContentType(raw string) (ContentType, error) {
	value := ContentType(strings.TrimSpace(raw))
	if !value.Valid() {
		return "", fmt.Errorf("%w: unknown content type %q", ErrValidation, raw)
	}
	return value, nil
}

// Item is a single scheduled piece of content.
type Item struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Objective    string       `json:"objective"`
	DueDate      time.Time    `json:"dueDate"`
	Completed    bool         `json:"completed"`
	ContentType  ContentType  `json:"contentType"`
	ContentStyle ContentStyle `json:"contentStyle"`
	Keywords     []string     `json:"keywords"`
}

// Clone returns a copy that shares no mutable state with item.
func (item Item) Clone() Item {
	cloned := item
	if item.Keywords != nil {
		cloned.Keywords = append(make([]string, 0, len(item.Keywords)), item.Keywords...)
	}
	return cloned
}

func (item Item) IsProvisional() bool {
	return IsProvisionalID(item.ID)
}

// Validate checks the item invariants. Errors wrap ErrValidation.
func (item Item) Validate() error {
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if item.DueDate.IsZero() {
		return fmt.Errorf("%w: item %s has no due date", ErrValidation, item.ID)
	}
	if !item.ContentType.Valid() {
		return fmt.Errorf("%w: item %s has unknown content type %q", ErrValidation, item.ID, item.ContentType)
	}
	if !item.ContentStyle.Valid() {
		return fmt.Errorf("%w: item %s has unknown content style %q", ErrValidation, item.ID, item.ContentStyle)
	}
	return nil
}

func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

func NewProvisionalID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return ProvisionalPrefix + hex.EncodeToString(buf)
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
