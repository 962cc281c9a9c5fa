package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wardenhq/warden/internal/platform/httpx"
)

const tokenKeyPrefix = "warden:token:"

// TokenStore issues and resolves opaque bearer tokens backed by Redis.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenStore{client: client, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (ts *TokenStore) TTL() time.Duration {
	return ts.ttl
}

// Issue mints an opaque token for the principal.
func (ts *TokenStore) Issue(ctx context.Context, p Principal) (string, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("auth: marshal principal: %w", err)
	}
	token := uuid.NewString()
	if err := ts.client.Set(ctx, tokenKeyPrefix+token, payload, ts.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Lookup resolves a token to its principal. Unknown or expired tokens fail
// with ErrUnauthorized.
func (ts *TokenStore) Lookup(ctx context.Context, token string) (Principal, error) {
	raw, err := ts.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, fmt.Errorf("auth: unknown token: %w", httpx.ErrUnauthorized)
		}
		return Principal{}, fmt.Errorf("auth: lookup token: %w", err)
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return Principal{}, fmt.Errorf("auth: decode principal: %w", err)
	}
	return p, nil
}

// Revoke deletes a token. Revoking an unknown token is a no-op.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := ts.client.Del(ctx, tokenKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}
