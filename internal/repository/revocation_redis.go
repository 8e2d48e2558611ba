package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "authgate:revoked:"

// RedisRevocationSet is a revocation registry backed by a shared Redis
// instance, for deployments running more than one gateway process. Entries
// carry a TTL matching the token's remaining lifetime so Redis expires them
// on its own even if the sweeper never reaches them.
type RedisRevocationSet struct {
	client *redis.Client
}

// NewRedisRevocationSet constructs a registry over the given client.
func NewRedisRevocationSet(client *redis.Client) *RedisRevocationSet {
	return &RedisRevocationSet{client: client}
}

// Revoke marks the token as disallowed for at most ttl. A non-positive ttl
// falls back to 24h so a miscomputed lifetime cannot pin the key forever.
func (s *RedisRevocationSet) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, revocationKeyPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke: %w", err)
	}
	return nil
}

// IsRevoked reports membership.
func (s *RedisRevocationSet) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("redis revocation lookup: %w", err)
	}
	return n > 0, nil
}

// Unrevoke removes the token from the registry.
func (s *RedisRevocationSet) Unrevoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, revocationKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("redis unrevoke: %w", err)
	}
	return nil
}
