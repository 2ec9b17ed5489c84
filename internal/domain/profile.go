package domain

import "time"

// ProfileStatus represents the duty status of a driver.
type ProfileStatus string

const (
	ProfileStatusActive   ProfileStatus = "active"
	ProfileStatusInactive ProfileStatus = "inactive"
	ProfileStatusOnLeave  ProfileStatus = "on_leave"
)

// Profile represents a driver's profile.
type Profile struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Name        string        `json:"name"`
	AvatarURL   string        `json:"avatar_url,omitempty"`
	Status      ProfileStatus `json:"status"`
	OrdersToday int           `json:"orders_today"` // accepted orders, only ever incremented
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
