package redis

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// SessionStoreInterface defines session registry operations.
type SessionStoreInterface interface {
	Create(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Owner(ctx context.Context, sessionID string) (string, error)
	Delete(ctx context.Context, sessionID string) error
}

// CounterBacklogInterface defines the counter debt queue operations.
type CounterBacklogInterface interface {
	Push(ctx context.Context, debt domain.CounterDebt) error
	Len(ctx context.Context) (int64, error)
	Drain(ctx context.Context, apply func(context.Context, domain.CounterDebt) error) (int, error)
}

// Ensure concrete types implement interfaces.
var (
	_ SessionStoreInterface   = (*SessionStore)(nil)
	_ CounterBacklogInterface = (*CounterBacklog)(nil)
)
