package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/domain"
)

const counterBacklogKey = "backlog:orders_today"

// CounterBacklog persists orders_today increments that failed after the
// order status was committed.
type CounterBacklog struct {
	client redis.Cmdable
	log    *zap.Logger
}

// NewCounterBacklog creates a new CounterBacklog.
func NewCounterBacklog(client redis.Cmdable, log *zap.Logger) *CounterBacklog {
	return &CounterBacklog{client: client, log: log}
}

// Push appends a debt to the backlog.
func (b *CounterBacklog) Push(ctx context.Context, debt domain.CounterDebt) error {
	data, err := json.Marshal(debt)
	if err != nil {
		return err
	}
	return b.client.LPush(ctx, counterBacklogKey, data).Err()
}

// Len returns the number of outstanding debts.
func (b *CounterBacklog) Len(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, counterBacklogKey).Result()
}

// Drain pops debts oldest first and passes each to apply. A debt whose apply
// fails is pushed back to the tail it came from and draining stops. Entries
// that cannot be decoded are logged and dropped.
// Returns the number of debts applied.
func (b *CounterBacklog) Drain(ctx context.Context, apply func(context.Context, domain.CounterDebt) error) (int, error) {
	applied := 0
	for {
		data, err := b.client.RPop(ctx, counterBacklogKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return applied, nil
		}
		if err != nil {
			return applied, err
		}

		var debt domain.CounterDebt
		if err := json.Unmarshal(data, &debt); err != nil {
			b.log.Warn("dropping undecodable counter debt",
				zap.String("key", counterBacklogKey),
				zap.ByteString("entry", data),
				zap.Error(err),
			)
			continue
		}

		if err := apply(ctx, debt); err != nil {
			if pushErr := b.client.RPush(ctx, counterBacklogKey, data).Err(); pushErr != nil {
				b.log.Error("failed to requeue counter debt",
					zap.Int64("order_id", debt.OrderID),
					zap.String("driver_id", debt.DriverID),
					zap.Error(pushErr),
				)
			}
			return applied, err
		}
		applied++
	}
}
