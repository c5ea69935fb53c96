package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"contentcal/api/internal/content"
)

// Subscriptions tracks which tenants have email settings, so the reminder
// sweeps know whose calendars to scan.
type Subscriptions struct {
	client *redis.Client
	key    string
}

type subscriptionMember struct {
	UserID    string `json:"u"`
	WebsiteID string `json:"w"`
}

func NewSubscriptions(kv *RedisKV) *Subscriptions {
	return &Subscriptions{client: kv.Client(), key: kv.key("subscriptions")}
}

func (s *Subscriptions) Add(ctx context.Context, tenant content.Tenant) error {
	member, err := encodeMember(tenant)
	if err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, s.key, member).Err(); err != nil {
		return fmt.Errorf("%w: add subscription: %v", content.ErrTransport, err)
	}
	return nil
}

func (s *Subscriptions) Remove(ctx context.Context, tenant content.Tenant) error {
	member, err := encodeMember(tenant)
	if err != nil {
		return err
	}
	if err := s.client.SRem(ctx, s.key, member).Err(); err != nil {
		return fmt.Errorf("%w: remove subscription: %v", content.ErrTransport, err)
	}
	return nil
}

func (s *Subscriptions) List(ctx context.Context) ([]content.Tenant, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %v", content.ErrTransport, err)
	}
	tenants := make([]content.Tenant, 0, len(members))
	for _, raw := range members {
		var m subscriptionMember
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		tenants = append(tenants, content.Tenant{UserID: m.UserID, WebsiteID: m.WebsiteID})
	}
	return tenants, nil
}

func encodeMember(tenant content.Tenant) (string, error) {
	if !tenant.Valid() {
		return "", fmt.Errorf("%w: subscription needs a tenant", content.ErrValidation)
	}
	raw, err := json.Marshal(subscriptionMember{UserID: tenant.UserID, WebsiteID: tenant.WebsiteID})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
