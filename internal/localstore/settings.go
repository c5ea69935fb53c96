package localstore

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"contentcal/api/internal/content"
)

const (
	EmailKey         = "contentCalendarEmail"
	NotifyDaysKey    = "contentCalendarNotifyDays"
	WeeklySummaryKey = "contentCalendarWeeklySummary"
)

const (
	DefaultNotifyDays = 1
	maxNotifyDays     = 30
)

// Settings controls reminder and summary emails for a calendar.
type Settings struct {
	Email         string `json:"email"`
	NotifyDays    int    `json:"notifyDays"`
	WeeklySummary bool   `json:"weeklySummary"`
}

// Enabled reports whether any email should be sent at all.
func (s Settings) Enabled() bool {
	return s.Email != ""
}

func (s Settings) Validate() error {
	if s.Email != "" {
		if _, err := mail.ParseAddress(s.Email); err != nil {
			return fmt.Errorf("%w: invalid email %q", content.ErrValidation, s.Email)
		}
	}
	if s.NotifyDays < 0 || s.NotifyDays > maxNotifyDays {
		return fmt.Errorf("%w: notifyDays must be between 0 and %d", content.ErrValidation, maxNotifyDays)
	}
	return nil
}

// SettingsStore keeps each setting under its own scalar key.
type SettingsStore struct {
	kv KV
}

func NewSettingsStore(kv KV) *SettingsStore {
	return &SettingsStore{kv: kv}
}

func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	settings := Settings{NotifyDays: DefaultNotifyDays}

	email, _, err := s.kv.Get(ctx, EmailKey)
	if err != nil {
		return Settings{}, err
	}
	settings.Email = email

	if raw, ok, err := s.kv.Get(ctx, NotifyDaysKey); err != nil {
		return Settings{}, err
	} else if ok {
		if days, convErr := strconv.Atoi(raw); convErr == nil {
			settings.NotifyDays = days
		}
	}

	if raw, ok, err := s.kv.Get(ctx, WeeklySummaryKey); err != nil {
		return Settings{}, err
	} else if ok {
		settings.WeeklySummary = raw == "true"
	}
	return settings, nil
}

func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	settings.Email = strings.TrimSpace(settings.Email)
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, EmailKey, settings.Email); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, NotifyDaysKey, strconv.Itoa(settings.NotifyDays)); err != nil {
		return err
	}
	return s.kv.Set(ctx, WeeklySummaryKey, strconv.FormatBool(settings.WeeklySummary))
}
