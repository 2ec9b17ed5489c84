package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/feed"
	"dispatch/internal/logger"
	"dispatch/internal/service"
)

const testDriverID = "driver-1"

var testIdentity = domain.Identity{ID: testDriverID, Email: "driver@example.com"}

// fixture bundles a controller with the fakes behind it.
type fixture struct {
	orders   *MockOrderRepository
	profiles *MockProfileRepository
	backlog  *MockCounterBacklog
	hub      *feed.Hub
	ctrl     *service.OrderController
}

func newFixture(t *testing.T, ordersToday int, pendingIDs ...int64) *fixture {
	t.Helper()

	f := &fixture{
		orders:   NewMockOrderRepository(),
		profiles: NewMockProfileRepository(),
		backlog:  NewMockCounterBacklog(),
		hub:      feed.NewHub(),
	}

	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range pendingIDs {
		f.orders.AddOrder(pendingOrder(id, created.Add(time.Duration(i)*time.Minute)))
	}
	f.profiles.AddProfile(&domain.Profile{
		ID:          "profile-1",
		UserID:      testDriverID,
		Name:        "Test Driver",
		Status:      domain.ProfileStatusActive,
		OrdersToday: ordersToday,
	})

	f.ctrl = service.NewOrderController(f.orders, f.profiles, f.hub, f.backlog, logger.NewNop())
	t.Cleanup(f.ctrl.Close)
	return f
}

// start initializes and subscribes the controller.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.ctrl.Initialize(context.Background(), testIdentity))
	require.NoError(t, f.ctrl.Subscribe())
}

func (f *fixture) snapshot(t *testing.T) service.Snapshot {
	t.Helper()
	snap, err := f.ctrl.Snapshot()
	require.NoError(t, err)
	return snap
}

// watch registers an event watcher that is released when the test ends.
func (f *fixture) watch(t *testing.T) (service.Snapshot, <-chan service.Event) {
	t.Helper()
	snap, events, cancel, err := f.ctrl.Watch()
	require.NoError(t, err)
	t.Cleanup(cancel)
	return snap, events
}

func (f *fixture) insert(order *domain.Order) {
	f.hub.Dispatch(feed.ChangeEvent{Type: feed.EventInsert, Table: feed.TableOrders, New: order})
}

func (f *fixture) remove(order *domain.Order) {
	f.hub.Dispatch(feed.ChangeEvent{Type: feed.EventDelete, Table: feed.TableOrders, Old: order})
}

func pendingOrder(id int64, created time.Time) *domain.Order {
	return &domain.Order{
		ID:          id,
		Patient:     "Patient",
		Destination: "Radiology",
		Time:        "10:30 AM",
		Status:      domain.OrderStatusPending,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func orderIDs(orders []domain.Order) []int64 {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

// drainEvents collects whatever is buffered on ch without blocking.
func drainEvents(ch <-chan service.Event) []service.Event {
	var events []service.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}
