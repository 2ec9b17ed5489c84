// Package feed delivers row-level change notifications for the orders table.
package feed

import (
	"errors"
	"strconv"
	"sync"

	"dispatch/internal/domain"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// TableOrders is the only table the feed publishes.
const TableOrders = "orders"

// ChangeEvent is one row change. New is set for inserts and updates, Old for
// updates and deletes.
type ChangeEvent struct {
	Type  EventType     `json:"type"`
	Table string        `json:"table"`
	New   *domain.Order `json:"new,omitempty"`
	Old   *domain.Order `json:"old,omitempty"`
}

// Row returns the row a filter is evaluated against.
func (e ChangeEvent) Row() *domain.Order {
	if e.Type == EventDelete {
		return e.Old
	}
	return e.New
}

// Filter is an equality predicate on an orders column. The zero Filter matches
// every row.
type Filter struct {
	Column string
	Value  string
}

// ErrUnsupportedColumn is returned when subscribing with a filter on a column
// the feed cannot evaluate.
var ErrUnsupportedColumn = errors.New("unsupported filter column")

// Matches reports whether the row satisfies the filter.
func (f Filter) Matches(row *domain.Order) bool {
	if f.Column == "" {
		return true
	}
	if row == nil {
		return false
	}
	switch f.Column {
	case "status":
		return string(row.Status) == f.Value
	case "driver_id":
		return row.DriverID == f.Value
	case "id":
		return strconv.FormatInt(row.ID, 10) == f.Value
	default:
		return false
	}
}

func (f Filter) valid() bool {
	switch f.Column {
	case "", "status", "driver_id", "id":
		return true
	}
	return false
}

// Handler receives change events.
type Handler func(ChangeEvent)

// Feed is a subscription source for order changes.
type Feed interface {
	Subscribe(table string, filter Filter, handler Handler) (*Subscription, error)
	Unsubscribe(sub *Subscription)
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	id      uint64
	table   string
	filter  Filter
	handler Handler

	mu     sync.Mutex
	closed bool
}

func (s *Subscription) deliver(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.handler(ev)
}

// Hub fans change events out to subscribers in registration order.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*Subscription
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers handler for changes on table matching filter.
func (h *Hub) Subscribe(table string, filter Filter, handler Handler) (*Subscription, error) {
	if !filter.valid() {
		return nil, ErrUnsupportedColumn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		table:   table,
		filter:  filter,
		handler: handler,
	}
	h.subs = append(h.subs, sub)
	return sub, nil
}

// Unsubscribe removes sub. Once it returns the handler will not be invoked
// again; it waits for a delivery already in progress. It must not be called
// from inside the subscription's own handler.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
}

// Dispatch delivers ev to every matching subscriber.
func (h *Hub) Dispatch(ev ChangeEvent) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		if s.table == ev.Table && s.filter.Matches(ev.Row()) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(ev)
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var _ Feed = (*Hub)(nil)
