// Package localstore persists session-scoped content plans and calendar
// settings in a key-value store.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"contentcal/api/internal/content"
)

// KV is the key-value surface the local adapters need.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// SetIfAbsent stores value only when key is missing and reports whether it did.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// RedisKV implements KV on Redis under a key prefix.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to Redis and verifies the connection.
func NewRedisKV(redisURL string) (*RedisKV, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisKV{client: client, prefix: "contentcal:"}, nil
}

// NewRedisKVWithClient wraps an existing client.
func NewRedisKVWithClient(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

// Scoped returns a KV sharing the connection whose keys live under an extra prefix.
func (s *RedisKV) Scoped(prefix string) *RedisKV {
	return &RedisKV{client: s.client, prefix: s.prefix + prefix}
}

// ForSession scopes keys to an anonymous browser session.
func (s *RedisKV) ForSession(sessionID string) *RedisKV {
	return s.Scoped("session:" + sessionID + ":")
}

// ForTenant scopes keys to a signed-in tenant.
func (s *RedisKV) ForTenant(tenant content.Tenant) *RedisKV {
	return s.Scoped("tenant:" + tenant.Key() + ":")
}

func (s *RedisKV) key(name string) string {
	return s.prefix + name
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", content.ErrTransport, key, err)
	}
	return value, true, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", content.ErrTransport, key, err)
	}
	return nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", content.ErrTransport, key, err)
	}
	return nil
}

func (s *RedisKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %s: %v", content.ErrTransport, key, err)
	}
	return ok, nil
}

// Client exposes the underlying connection for set-based helpers.
func (s *RedisKV) Client() *redis.Client {
	return s.client
}

func (s *RedisKV) Close() error {
	return s.client.Close()
}

func (s *RedisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
