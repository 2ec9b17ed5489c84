package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/feed"
	"dispatch/internal/logger"
	"dispatch/internal/service"
)

func newRegistry(f *fixture) *service.SessionRegistry {
	return service.NewSessionRegistry(func() *service.OrderController {
		return service.NewOrderController(f.orders, f.profiles, f.hub, f.backlog, logger.NewNop())
	}, logger.NewNop())
}

func TestSessionRegistry_OpenReusesController(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	registry := newRegistry(f)
	t.Cleanup(registry.CloseAll)

	first, err := registry.Open(context.Background(), "session-a", testIdentity, time.Time{})
	require.NoError(t, err)
	second, err := registry.Open(context.Background(), "session-a", testIdentity, time.Time{})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, f.hub.Len())
}

func TestSessionRegistry_ConcurrentOpenKeepsOneController(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	registry := newRegistry(f)
	t.Cleanup(registry.CloseAll)

	var wg sync.WaitGroup
	controllers := make([]*service.OrderController, 10)
	for i := range controllers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrl, err := registry.Open(context.Background(), "session-a", testIdentity, time.Time{})
			assert.NoError(t, err)
			controllers[i] = ctrl
		}(i)
	}
	wg.Wait()

	for _, ctrl := range controllers[1:] {
		assert.Same(t, controllers[0], ctrl)
	}
	assert.Equal(t, 1, registry.Len())
	assert.Equal(t, 1, f.hub.Len())
}

func TestSessionRegistry_OpenFailureLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	f.profiles.GetError = ErrInjected
	registry := newRegistry(f)

	_, err := registry.Open(context.Background(), "session-a", testIdentity, time.Time{})
	assert.ErrorIs(t, err, service.ErrAuthenticationOrLoad)
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 0, f.hub.Len())
}

func TestSessionRegistry_CloseUnsubscribes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	registry := newRegistry(f)

	_, err := registry.Open(context.Background(), "session-a", testIdentity, time.Time{})
	require.NoError(t, err)
	_, err = registry.Open(context.Background(), "session-b", testIdentity, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, f.hub.Len())

	registry.Close("session-a")
	_, ok := registry.Get("session-a")
	assert.False(t, ok)
	assert.Equal(t, 1, f.hub.Len())

	registry.Close("missing")
	registry.CloseAll()
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 0, f.hub.Len())
}

func TestSessionRegistry_SessionsShareFeed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	registry := newRegistry(f)
	t.Cleanup(registry.CloseAll)

	a, err := registry.Open(context.Background(), "session-a", testIdentity, time.Time{})
	require.NoError(t, err)
	b, err := registry.Open(context.Background(), "session-b", testIdentity, time.Time{})
	require.NoError(t, err)

	f.hub.Dispatch(feed.ChangeEvent{Type: feed.EventInsert, Table: feed.TableOrders, New: pendingOrder(2, f.orders.GetOrder(1).CreatedAt)})

	for _, ctrl := range []*service.OrderController{a, b} {
		snap, err := ctrl.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, orderIDs(snap.Pending))
	}
}

func TestSessionRegistry_SweepDisposesExpiredSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	registry := newRegistry(f)
	t.Cleanup(registry.CloseAll)

	expired, err := registry.Open(context.Background(), "session-a", testIdentity, time.Now().Add(-time.Second))
	require.NoError(t, err)
	_, err = registry.Open(context.Background(), "session-b", testIdentity, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = registry.Open(context.Background(), "session-c", testIdentity, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, f.hub.Len())

	assert.Equal(t, 1, registry.Sweep())
	_, ok := registry.Get("session-a")
	assert.False(t, ok)
	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, 2, f.hub.Len())

	_, err = expired.Snapshot()
	assert.ErrorIs(t, err, service.ErrControllerClosed)

	assert.Equal(t, 0, registry.Sweep())
}

func TestSessionRegistry_RunEvictsExpiredSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, 1)
	registry := newRegistry(f)
	t.Cleanup(registry.CloseAll)

	_, err := registry.Open(context.Background(), "session-a", testIdentity, time.Now().Add(50*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, 1, f.hub.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		registry.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return registry.Len() == 0 && f.hub.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
