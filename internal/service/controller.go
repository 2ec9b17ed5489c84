package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/feed"
	"dispatch/internal/repository"
)

// eventBuffer bounds each watcher's event channel.
const eventBuffer = 64

// CounterBacklog records counter increments that could not be applied.
type CounterBacklog interface {
	Push(ctx context.Context, debt domain.CounterDebt) error
}

// DecisionPhase is how far a decision got through its two writes.
type DecisionPhase string

const (
	// PhaseStatusCommitted means the order write succeeded and no counter
	// write was made or it failed.
	PhaseStatusCommitted DecisionPhase = "status_committed"

	// PhaseCounterCommitted means both the order and the counter write succeeded.
	PhaseCounterCommitted DecisionPhase = "counter_committed"
)

// Decision is the outcome of a Decide call.
type Decision struct {
	Order domain.Order  `json:"order"`
	Phase DecisionPhase `json:"phase"`
}

// Snapshot is a copy of a controller's views.
type Snapshot struct {
	Identity     domain.Identity      `json:"identity"`
	Profile      domain.Profile       `json:"profile"`
	Pending      []domain.Order       `json:"pending"`
	History      []domain.Order       `json:"history"`
	Unreconciled []domain.CounterDebt `json:"unreconciled,omitempty"`
}

// OrderController owns one driver session's pending view, history view and
// profile. Every view mutation happens under mu, which is never held across
// a store call, so feed events may land while a decision is in flight.
type OrderController struct {
	orders   repository.OrderRepository
	profiles repository.ProfileRepository
	feed     feed.Feed
	backlog  CounterBacklog
	log      *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	ready     bool
	closed    bool
	identity  domain.Identity
	profile   domain.Profile
	pending   []domain.Order
	history   []domain.Order
	debts     []domain.CounterDebt
	sub       *feed.Subscription
	watchers  map[uint64]chan Event
	nextWatch uint64
}

// NewOrderController creates a controller. backlog may be nil.
func NewOrderController(
	orders repository.OrderRepository,
	profiles repository.ProfileRepository,
	changes feed.Feed,
	backlog CounterBacklog,
	log *zap.Logger,
) *OrderController {
	return &OrderController{
		orders:   orders,
		profiles: profiles,
		feed:     changes,
		backlog:  backlog,
		log:      log,
		now:      time.Now,
		watchers: make(map[uint64]chan Event),
	}
}

// Initialize loads the profile, the pending orders and the driver's history.
// On any failure nothing is kept and the error wraps ErrAuthenticationOrLoad.
func (c *OrderController) Initialize(ctx context.Context, identity domain.Identity) error {
	if identity.ID == "" {
		return fmt.Errorf("%w: missing identity", ErrAuthenticationOrLoad)
	}

	profile, err := c.profiles.GetByUserID(ctx, identity.ID)
	if err != nil {
		c.log.Error("failed to load profile", zap.String("user_id", identity.ID), zap.Error(err))
		return fmt.Errorf("%w: load profile: %w", ErrAuthenticationOrLoad, err)
	}

	pending, err := c.orders.ListPending(ctx)
	if err != nil {
		c.log.Error("failed to load pending orders", zap.Error(err))
		return fmt.Errorf("%w: load pending orders: %w", ErrAuthenticationOrLoad, err)
	}

	history, err := c.orders.ListHistory(ctx, identity.ID)
	if err != nil {
		c.log.Error("failed to load order history", zap.String("user_id", identity.ID), zap.Error(err))
		return fmt.Errorf("%w: load order history: %w", ErrAuthenticationOrLoad, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}

	c.identity = identity
	c.profile = *profile
	c.pending = derefOrders(pending)
	c.history = derefOrders(history)
	c.ready = true

	return nil
}

// Subscribe opens the live feed of pending-order inserts and deletes.
func (c *OrderController) Subscribe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.sub != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	filter := feed.Filter{Column: "status", Value: string(domain.OrderStatusPending)}
	sub, err := c.feed.Subscribe(feed.TableOrders, filter, c.handleChange)
	if err != nil {
		return fmt.Errorf("subscribe to pending orders: %w", err)
	}

	c.mu.Lock()
	closed, duplicate := c.closed, c.sub != nil
	if !closed && !duplicate {
		c.sub = sub
	}
	c.mu.Unlock()

	// Unsubscribe waits on an in-progress handleChange, so mu must be released first.
	if closed || duplicate {
		c.feed.Unsubscribe(sub)
	}
	if closed {
		return ErrControllerClosed
	}
	return nil
}

// handleChange merges a feed event into the pending view. Inserts are
// prepended without checking for an existing entry; update events are ignored.
func (c *OrderController) handleChange(ev feed.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	switch ev.Type {
	case feed.EventInsert:
		if ev.New == nil {
			return
		}
		order := *ev.New
		c.pending = append([]domain.Order{order}, c.pending...)
		c.emit(Event{Type: EventPendingInserted, OrderID: order.ID, Order: &order})
	case feed.EventDelete:
		if ev.Old == nil {
			return
		}
		if c.removePending(ev.Old.ID) {
			c.emit(Event{Type: EventPendingRemoved, OrderID: ev.Old.ID})
		}
	}
}

// Decide records the driver's decision on an order. The order write happens
// first; views change only after it succeeds. An accepted order then bumps
// orders_today. If that second write fails the order stays decided, the debt
// is recorded and a *PartialCommitError is returned with the Decision.
func (c *OrderController) Decide(ctx context.Context, orderID int64, decision domain.OrderStatus) (*Decision, error) {
	if !decision.IsDecision() {
		return nil, ErrInvalidDecision
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	}
	if !c.ready {
		c.mu.Unlock()
		return nil, ErrNotInitialized
	}
	identity := c.identity
	c.mu.Unlock()

	now := c.now()

	updated, err := c.orders.UpdateStatus(ctx, orderID, decision, identity.ID, now)
	if err != nil {
		c.log.Error("failed to update order status",
			zap.Int64("order_id", orderID),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("%w: update order %d: %w", ErrRemoteWrite, orderID, err)
	}

	result := &Decision{Order: *updated, Phase: PhaseStatusCommitted}

	c.mu.Lock()
	if !c.closed {
		c.removePending(orderID)
		order := *updated
		c.history = append([]domain.Order{order}, c.history...)
		c.emit(Event{Type: EventOrderDecided, OrderID: orderID, Order: &order})
	}
	c.mu.Unlock()

	if decision != domain.OrderStatusAccepted {
		c.log.Info("order decided", zap.Int64("order_id", orderID), zap.String("decision", string(decision)))
		return result, nil
	}

	if err := c.profiles.IncrementOrdersToday(ctx, identity.ID, 1, now); err != nil {
		c.log.Error("order accepted but orders_today update failed",
			zap.Int64("order_id", orderID),
			zap.String("user_id", identity.ID),
			zap.Error(err),
		)
		c.recordDebt(ctx, domain.CounterDebt{OrderID: orderID, DriverID: identity.ID, At: now}, err)
		return result, &PartialCommitError{OrderID: orderID, Err: err}
	}

	c.mu.Lock()
	if !c.closed {
		c.profile.OrdersToday++
		c.profile.UpdatedAt = now
		profile := c.profile
		c.emit(Event{Type: EventProfileUpdated, Profile: &profile})
	}
	c.mu.Unlock()

	result.Phase = PhaseCounterCommitted
	c.log.Info("order decided", zap.Int64("order_id", orderID), zap.String("decision", string(decision)))
	return result, nil
}

func (c *OrderController) recordDebt(ctx context.Context, debt domain.CounterDebt, cause error) {
	c.mu.Lock()
	if !c.closed {
		c.debts = append(c.debts, debt)
		c.emit(Event{Type: EventCounterFailed, OrderID: debt.OrderID, Error: cause.Error()})
	}
	c.mu.Unlock()

	if c.backlog == nil {
		return
	}
	if err := c.backlog.Push(ctx, debt); err != nil {
		c.log.Error("failed to record counter debt", zap.Int64("order_id", debt.OrderID), zap.Error(err))
	}
}

// RegisterDriver validates a driver name. Accounts are not created here.
func (c *OrderController) RegisterDriver(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: driver name is required", ErrValidation)
	}
	c.log.Info("driver registered", zap.String("name", name))
	return nil
}

// Snapshot returns a copy of the current views.
func (c *OrderController) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Watch returns the current views together with a channel that receives
// every change made after them. Each call gets its own channel; cancel
// releases it. The channel is closed by cancel or by Close.
func (c *OrderController) Watch() (Snapshot, <-chan Event, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.snapshotLocked()
	if err != nil {
		return Snapshot{}, nil, nil, err
	}

	c.nextWatch++
	id := c.nextWatch
	ch := make(chan Event, eventBuffer)
	c.watchers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
	}
	return snap, ch, cancel, nil
}

func (c *OrderController) snapshotLocked() (Snapshot, error) {
	if c.closed {
		return Snapshot{}, ErrControllerClosed
	}
	if !c.ready {
		return Snapshot{}, ErrNotInitialized
	}

	return Snapshot{
		Identity:     c.identity,
		Profile:      c.profile,
		Pending:      append([]domain.Order{}, c.pending...),
		History:      append([]domain.Order{}, c.history...),
		Unreconciled: append([]domain.CounterDebt(nil), c.debts...),
	}, nil
}

// Close tears down the feed subscription and closes every watcher channel.
// No feed callback runs after Close returns. Store writes already in flight
// are left to finish on their own.
func (c *OrderController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	for id, w := range c.watchers {
		delete(c.watchers, id)
		close(w)
	}
	c.mu.Unlock()

	if sub != nil {
		c.feed.Unsubscribe(sub)
	}
}

// emit must be called with mu held.
func (c *OrderController) emit(ev Event) {
	if c.closed {
		return
	}
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	for id, w := range c.watchers {
		select {
		case w <- ev:
		default:
			c.log.Warn("watcher falling behind, dropping event",
				zap.Uint64("watcher", id),
				zap.String("type", string(ev.Type)),
				zap.Int64("order_id", ev.OrderID),
			)
		}
	}
}

// removePending drops every pending entry with the given ID and reports
// whether any was present. mu must be held.
func (c *OrderController) removePending(id int64) bool {
	kept := c.pending[:0]
	removed := false
	for _, o := range c.pending {
		if o.ID == id {
			removed = true
			continue
		}
		kept = append(kept, o)
	}
	c.pending = kept
	return removed
}

func derefOrders(orders []*domain.Order) []domain.Order {
	result := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o != nil {
			result = append(result, *o)
		}
	}
	return result
}
