package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// ProfileRepository defines the persistence operations for driver profiles.
type ProfileRepository interface {
	// Create persists a new profile.
	Create(ctx context.Context, profile *domain.Profile) error

	// GetByUserID retrieves the profile belonging to a user.
	GetByUserID(ctx context.Context, userID string) (*domain.Profile, error)

	// IncrementOrdersToday adds delta to orders_today and refreshes updated_at.
	IncrementOrdersToday(ctx context.Context, userID string, delta int, at time.Time) error
}
