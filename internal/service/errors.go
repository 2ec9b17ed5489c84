package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationOrLoad is returned when a session cannot be initialized.
	// The session must be treated as unusable.
	ErrAuthenticationOrLoad = errors.New("authentication or load failed")

	// ErrNotInitialized is returned when a controller is used before Initialize.
	ErrNotInitialized = errors.New("controller not initialized")

	// ErrControllerClosed is returned when a controller is used after Close.
	ErrControllerClosed = errors.New("controller closed")

	// ErrRemoteWrite is returned when a store mutation fails.
	ErrRemoteWrite = errors.New("remote write failed")

	// ErrPartialCommit is matched by *PartialCommitError.
	ErrPartialCommit = errors.New("order status committed but counter update failed")

	// ErrValidation is returned for invalid local input. No remote call is made.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidDecision is returned when a decision is neither accepted nor rejected.
	ErrInvalidDecision = fmt.Errorf("%w: decision must be accepted or rejected", ErrValidation)

	// ErrOrderNotFound is returned when a decision matches no order at all.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSessionNotFound is returned when no controller is open for a session.
	ErrSessionNotFound = errors.New("session not found")
)

// PartialCommitError reports an accepted order whose orders_today increment
// failed. The order status write is already committed.
type PartialCommitError struct {
	OrderID int64
	Err     error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("order %d accepted but orders_today update failed: %v", e.OrderID, e.Err)
}

// Unwrap exposes both ErrPartialCommit and the underlying store error.
func (e *PartialCommitError) Unwrap() []error {
	return []error{ErrPartialCommit, e.Err}
}
