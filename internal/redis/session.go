package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "session:"

// SessionStore tracks live sign-in sessions so they can be revoked.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Create records a session owned by userID that expires after ttl.
func (s *SessionStore) Create(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionPrefix+sessionID, userID, ttl).Err()
}

// Owner returns the user ID of a live session, or "" if it does not exist.
func (s *SessionStore) Owner(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.client.Get(ctx, sessionPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Delete revokes a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionPrefix+sessionID).Err()
}
