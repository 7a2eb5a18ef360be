package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const mapTokenKey = "map:token"

// TokenStore keeps the shared map-provider access token in Redis so every
// dashboard instance serves the same one.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

// Token returns the stored token, or "" when none has been set.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, mapTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get map token: %w", err)
	}
	return val, nil
}

// SetToken stores the token without expiry.
func (s *TokenStore) SetToken(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, mapTokenKey, token, 0).Err(); err != nil {
		return fmt.Errorf("set map token: %w", err)
	}
	return nil
}
