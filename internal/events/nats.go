package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriberBuffer is the per-subscription queue length. NATS drops
// messages for a subscription whose queue is full.
const subscriberBuffer = 64

const closeFlushTimeout = 2 * time.Second

// Bus is a NATS connection used both to publish notifications and to
// receive crawl requests.
type Bus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// Connect dials url and keeps reconnecting for the life of the Bus.
// Connection state changes are logged to logger.
func Connect(url string, logger *slog.Logger, opts ...nats.Option) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []nats.Option{
		nats.Name("osevents"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrlRedacted())
		}),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &Bus{conn: nc, logger: logger}, nil
}

// Publish sends event as JSON on topic. Delivery is fire-and-forget; call
// Flush to wait for the server.
func (b *Bus) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := b.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) Flush() error {
	return b.conn.Flush()
}

// Subscribe forwards payloads published on topic, which may use NATS
// wildcards. The subscription is registered with the server before
// Subscribe returns. cancel unsubscribes and closes the channel; it is safe
// to call more than once.
func (b *Bus) Subscribe(topic string) (<-chan []byte, func(), error) {
	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := b.conn.ChanSubscribe(topic, msgs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan []byte)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case msg := <-msgs:
				select {
				case out <- msg.Data:
				case <-stop:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil && !b.conn.IsClosed() {
				b.logger.Warn("NATS unsubscribe failed", "topic", topic, "err", err)
			}
			close(stop)
			<-done
		})
	}
	return out, cancel, nil
}

// Close flushes pending publishes, waiting at most closeFlushTimeout, and
// closes the connection.
func (b *Bus) Close() error {
	var err error
	if b.conn.IsConnected() {
		err = b.conn.FlushTimeout(closeFlushTimeout)
	}
	b.conn.Close()
	return err
}
