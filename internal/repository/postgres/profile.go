package postgres

import (
	"context"
	"database/sql"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// ProfileRepository is a PostgreSQL implementation of repository.ProfileRepository.
type ProfileRepository struct {
	q Querier
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{q: db}
}

// Create persists a new profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, name, avatar_url, status, orders_today)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		profile.UserID,
		profile.Name,
		nullString(profile.AvatarURL),
		profile.Status,
		profile.OrdersToday,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	return translateError(err)
}

// GetByUserID retrieves the profile belonging to a user.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT id, user_id, name, avatar_url, status, orders_today, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`

	var profile domain.Profile
	var avatarURL sql.NullString
	err := r.q.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Name,
		&avatarURL,
		&profile.Status,
		&profile.OrdersToday,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	if avatarURL.Valid {
		profile.AvatarURL = avatarURL.String
	}

	return &profile, nil
}

// IncrementOrdersToday adds delta to the profile's orders_today counter.
func (r *ProfileRepository) IncrementOrdersToday(ctx context.Context, userID string, delta int, at time.Time) error {
	query := `UPDATE profiles SET orders_today = orders_today + $1, updated_at = $2 WHERE user_id = $3`

	result, err := r.q.ExecContext(ctx, query, delta, at, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
