package auth

import "errors"

var (
	// ErrNotAuthenticated is returned when a request carries no valid session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials is returned when email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrValidation is returned when sign-up input is incomplete or inconsistent.
	ErrValidation = errors.New("validation failed")

	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
)
