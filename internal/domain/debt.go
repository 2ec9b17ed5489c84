package domain

import "time"

// CounterDebt records an accepted order whose orders_today increment was not
// applied. The order status is already committed.
type CounterDebt struct {
	OrderID  int64     `json:"order_id"`
	DriverID string    `json:"driver_id"`
	At       time.Time `json:"at"`
}
