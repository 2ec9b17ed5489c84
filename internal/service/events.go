package service

import (
	"time"

	"dispatch/internal/domain"
)

// EventType identifies a controller state change.
type EventType string

const (
	EventPendingInserted EventType = "pending_inserted"
	EventPendingRemoved  EventType = "pending_removed"
	EventOrderDecided    EventType = "order_decided"
	EventProfileUpdated  EventType = "profile_updated"
	EventCounterFailed   EventType = "counter_failed"
)

// Event is emitted by an OrderController whenever its views change.
type Event struct {
	Type    EventType       `json:"type"`
	OrderID int64           `json:"order_id,omitempty"`
	Order   *domain.Order   `json:"order,omitempty"`
	Profile *domain.Profile `json:"profile,omitempty"`
	Error   string          `json:"error,omitempty"`
	At      time.Time       `json:"at"`
}
