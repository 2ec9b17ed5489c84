package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dispatch/internal/domain"
)

// memList serves list commands from memory. Any other command panics on the
// nil embedded interface.
type memList struct {
	redis.Cmdable

	mu    sync.Mutex
	lists map[string][]string
}

func newMemList() *memList {
	return &memList{lists: make(map[string][]string)}
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch v := v.(type) {
		case []byte:
			out = append(out, string(v))
		case string:
			out = append(out, v)
		}
	}
	return out
}

func (m *memList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range toStrings(values) {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], toStrings(values)...)
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memList) RPop(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if len(list) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	last := list[len(list)-1]
	m.lists[key] = list[:len(list)-1]
	return redis.NewStringResult(last, nil)
}

func (m *memList) LLen(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func debt(orderID int64) domain.CounterDebt {
	return domain.CounterDebt{
		OrderID:  orderID,
		DriverID: "driver-1",
		At:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestCounterBacklog_DrainAppliesOldestFirst(t *testing.T) {
	list := newMemList()
	backlog := NewCounterBacklog(list, zap.NewNop())
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, backlog.Push(ctx, debt(id)))
	}
	n, err := backlog.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var seen []int64
	applied, err := backlog.Drain(ctx, func(_ context.Context, d domain.CounterDebt) error {
		seen = append(seen, d.OrderID)
		assert.Equal(t, "driver-1", d.DriverID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.Equal(t, []int64{1, 2, 3}, seen)

	n, err = backlog.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCounterBacklog_DrainRequeuesOnApplyFailure(t *testing.T) {
	list := newMemList()
	backlog := NewCounterBacklog(list, zap.NewNop())
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, backlog.Push(ctx, debt(id)))
	}

	errApply := errors.New("profile store down")
	applied, err := backlog.Drain(ctx, func(_ context.Context, d domain.CounterDebt) error {
		if d.OrderID == 2 {
			return errApply
		}
		return nil
	})
	assert.ErrorIs(t, err, errApply)
	assert.Equal(t, 1, applied)

	var seen []int64
	applied, err = backlog.Drain(ctx, func(_ context.Context, d domain.CounterDebt) error {
		seen = append(seen, d.OrderID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, []int64{2, 3}, seen)
}

func TestCounterBacklog_DrainDropsUndecodableEntries(t *testing.T) {
	list := newMemList()
	core, logs := observer.New(zap.WarnLevel)
	backlog := NewCounterBacklog(list, zap.New(core))
	ctx := context.Background()

	require.NoError(t, backlog.Push(ctx, debt(1)))
	list.LPush(ctx, counterBacklogKey, "{not json")
	require.NoError(t, backlog.Push(ctx, debt(2)))

	var seen []int64
	applied, err := backlog.Drain(ctx, func(_ context.Context, d domain.CounterDebt) error {
		seen = append(seen, d.OrderID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, []int64{1, 2}, seen)

	dropped := logs.FilterMessage("dropping undecodable counter debt").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "{not json", dropped[0].ContextMap()["entry"])
}

func TestCounterBacklog_DrainEmpty(t *testing.T) {
	backlog := NewCounterBacklog(newMemList(), zap.NewNop())

	applied, err := backlog.Drain(context.Background(), func(context.Context, domain.CounterDebt) error {
		t.Fatal("apply called on empty backlog")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, applied)
}
