// Package redis caches flow session snapshots in Redis
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/stepflow/stepflow/internal/core/session"
)

const (
	DefaultTTL    = 40 * time.Minute
	sessionPrefix = "session:"
)

// SessionCache stores session snapshots keyed by scenario id
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses redisURL, pings the server and returns a cache
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (*SessionCache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewSessionCache(client, ttl), nil
}

// NewSessionCache wraps an existing client. A non-positive ttl means DefaultTTL.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionCache{client: client, ttl: ttl}
}

func key(scenarioID string) string {
	return sessionPrefix + scenarioID
}

// SaveSession stores snap with the cache TTL
func (c *SessionCache) SaveSession(ctx context.Context, scenarioID string, snap session.Snapshot) error {
	if scenarioID == "" {
		return session.ErrNoScenario
	}
	data, err := sonic.ConfigStd.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}
	if err := c.client.Set(ctx, key(scenarioID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session data: %w", err)
	}
	return nil
}

// LoadSession reads a snapshot and extends its TTL
func (c *SessionCache) LoadSession(ctx context.Context, scenarioID string) (session.Snapshot, error) {
	var snap session.Snapshot
	if scenarioID == "" {
		return snap, session.ErrNoScenario
	}
	s, err := c.client.GetEx(ctx, key(scenarioID), c.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snap, session.ErrNoSnapshot
		}
		return snap, fmt.Errorf("failed to get session data: %w", err)
	}
	if err := sonic.ConfigStd.UnmarshalFromString(s, &snap); err != nil {
		return snap, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return snap, nil
}

// DeleteSession removes the snapshot for scenarioID
func (c *SessionCache) DeleteSession(ctx context.Context, scenarioID string) error {
	if err := c.client.Del(ctx, key(scenarioID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the client
func (c *SessionCache) Close() error {
	return c.client.Close()
}
