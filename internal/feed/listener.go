package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"dispatch/internal/config"
)

// PGFeed receives order changes through PostgreSQL LISTEN/NOTIFY and
// dispatches them to subscribers.
type PGFeed struct {
	*Hub
	listener *pq.Listener
	channel  string
	ping     time.Duration
	log      *zap.Logger
}

// NewPGFeed opens a dedicated listener connection and starts listening on the
// configured channel.
func NewPGFeed(dsn string, cfg config.FeedConfig, log *zap.Logger) (*PGFeed, error) {
	listener := pq.NewListener(dsn, cfg.MinReconnectInterval, cfg.MaxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnected:
				log.Info("change feed connected", zap.String("channel", cfg.Channel))
			case pq.ListenerEventDisconnected:
				log.Warn("change feed disconnected", zap.Error(err))
			case pq.ListenerEventReconnected:
				log.Info("change feed reconnected", zap.String("channel", cfg.Channel))
			case pq.ListenerEventConnectionAttemptFailed:
				log.Error("change feed connection attempt failed", zap.Error(err))
			}
		})

	if err := listener.Listen(cfg.Channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Channel, err)
	}

	ping := cfg.PingInterval
	if ping <= 0 {
		ping = 90 * time.Second
	}

	return &PGFeed{
		Hub:      NewHub(),
		listener: listener,
		channel:  cfg.Channel,
		ping:     ping,
		log:      log,
	}, nil
}

// Run pumps notifications until ctx is cancelled, then closes the listener.
func (f *PGFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.ping)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return f.listener.Close()
		case n := <-f.listener.Notify:
			if n == nil {
				// Sent after a reconnect; notifications during the outage are lost.
				f.log.Warn("change feed reconnected, events may have been missed")
				continue
			}
			f.handle(n.Extra)
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.log.Warn("change feed ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (f *PGFeed) handle(payload string) {
	ev, err := Decode([]byte(payload))
	if err != nil {
		f.log.Error("failed to decode change event", zap.Error(err), zap.String("payload", payload))
		return
	}
	f.Dispatch(ev)
}

// Decode parses a notification payload produced by the orders trigger.
func Decode(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, err
	}
	switch ev.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}
