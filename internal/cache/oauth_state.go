package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

// OAuthStateStore holds the state nonce handed to the provider's consent
// screen. The callback has no Authorization header, so the nonce is the only
// way to tie the redirect back to the user who started the flow.
type OAuthStateStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewOAuthStateStore(client *redisv9.Client, ttl time.Duration) *OAuthStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthStateStore{client: client, ttl: ttl}
}

// Issue stores a fresh nonce for the user and returns it.
func (s *OAuthStateStore) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state failed: %w", err)
	}
	state := hex.EncodeToString(buf)
	if err := s.client.Set(ctx, s.key(state), userID.String(), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set oauth state failed: %w", err)
	}
	return state, nil
}

// Take resolves a state nonce to the user who issued it and deletes it, so a
// replayed callback finds nothing. The second return is false when the nonce
// is unknown or expired.
func (s *OAuthStateStore) Take(ctx context.Context, state string) (uuid.UUID, bool, error) {
	key := s.key(state)
	raw, err := s.client.GetDel(ctx, key).Result()
	if err == redisv9.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis take oauth state failed: %w", err)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("parse oauth state owner failed: %w", err)
	}
	return userID, true, nil
}

func (s *OAuthStateStore) key(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}
