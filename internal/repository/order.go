package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for transport orders.
type OrderRepository interface {
	// ListPending retrieves all pending orders, newest created first.
	ListPending(ctx context.Context) ([]*domain.Order, error)

	// ListHistory retrieves the orders a driver has accepted or rejected,
	// most recently updated first.
	ListHistory(ctx context.Context, driverID string) ([]*domain.Order, error)

	// InsertMany persists a batch of new orders.
	InsertMany(ctx context.Context, orders []*domain.Order) error

	// UpdateStatus sets status, driver and updated_at on the order with the
	// given ID and returns the updated row. Returns ErrNotFound if no row matched.
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, driverID string, at time.Time) (*domain.Order, error)
}
