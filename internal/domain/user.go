package domain

import "time"

// Identity is the authenticated principal making requests.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// User is an account known to the identity provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
