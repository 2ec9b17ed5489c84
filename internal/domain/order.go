package domain

import "time"

// OrderStatus represents the lifecycle status of a transport order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusRejected OrderStatus = "rejected"
)

// IsDecision reports whether the status is a terminal driver decision.
func (s OrderStatus) IsDecision() bool {
	return s == OrderStatusAccepted || s == OrderStatusRejected
}

// Order represents one patient transport request.
type Order struct {
	ID          int64       `json:"id"`
	Patient     string      `json:"patient"`
	Destination string      `json:"destination"`
	Time        string      `json:"time"`
	Status      OrderStatus `json:"status"`
	DriverID    string      `json:"driver_id,omitempty"` // empty while pending
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
