package repository

import (
	"context"

	"dispatch/internal/domain"
)

// UserRepository defines the persistence operations for accounts.
type UserRepository interface {
	// Create adds a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
