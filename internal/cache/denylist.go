package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylistPrefix is the key prefix for revoked access token ids
const TokenDenylistPrefix = "auth:denylist:"

// TokenDenylist remembers revoked access tokens until they expire on their own.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RedisTokenDenylist struct {
	client *redis.Client
}

func NewTokenDenylist(client *redis.Client) TokenDenylist {
	return &RedisTokenDenylist{client: client}
}

// Revoke stores the token id for ttl. A non-positive ttl means the token
// has already expired and nothing is stored.
func (d *RedisTokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" || ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, TokenDenylistPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *RedisTokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, TokenDenylistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check token denylist: %w", err)
	}
	return n > 0, nil
}

// NopTokenDenylist is used without Redis: access tokens stay valid until expiry.
type NopTokenDenylist struct{}

func (NopTokenDenylist) Revoke(context.Context, string, time.Duration) error { return nil }

func (NopTokenDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
