package realtime

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	appsync "github.com/foodhub/ordersync/internal/application/sync"
)

// DefaultPushExchange is the topic exchange the backend publishes
// order pushes to.
const DefaultPushExchange = "orders.push"

// bindingKey builds the topic binding key for a room
func bindingKey(room appsync.Room) string {
	return fmt.Sprintf("%s.%s", room.Role, room.OwnerID)
}

// RabbitConfig holds RabbitMQ transport settings
type RabbitConfig struct {
	URL      string
	Exchange string
}

// RabbitTransport implements sync.Transport over a RabbitMQ topic
// exchange. Each connection declares its own exclusive auto-delete
// queue bound to the room's routing key, so membership vanishes with
// the connection and a reconnect joins from scratch.
type RabbitTransport struct {
	config RabbitConfig
	logger *zap.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	msgs  chan appsync.PushMessage
	done  chan struct{}
}

// NewRabbitTransport creates a RabbitMQ topic-exchange transport
func NewRabbitTransport(cfg RabbitConfig, logger *zap.Logger) *RabbitTransport {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultPushExchange
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitTransport{config: cfg, logger: logger}
}

// Connect implements sync.Transport
func (t *RabbitTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()

	conn, err := amqp.Dial(t.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(t.config.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	t.conn = conn
	t.ch = ch
	return nil
}

// Join implements sync.Transport: declares an exclusive queue for this
// connection, binds it to the room's routing key, and starts consuming.
func (t *RabbitTransport) Join(ctx context.Context, room appsync.Room) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ch == nil {
		return fmt.Errorf("not connected")
	}

	q, err := t.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := t.ch.QueueBind(q.Name, bindingKey(room), t.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := t.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}

	t.queue = q.Name
	t.msgs = make(chan appsync.PushMessage, 64)
	t.done = make(chan struct{})

	// A broker-side close surfaces through NotifyClose; draining it in
	// the pump guarantees the delivery channel closes and the channel
	// client reconnects.
	closed := t.conn.NotifyClose(make(chan *amqp.Error, 1))
	go t.pump(deliveries, closed, t.msgs, t.done)
	return nil
}

// Messages implements sync.Transport
func (t *RabbitTransport) Messages() <-chan appsync.PushMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.msgs
}

// Close implements sync.Transport
func (t *RabbitTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
	return nil
}

func (t *RabbitTransport) teardownLocked() {
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	if t.ch != nil {
		_ = t.ch.Close()
		t.ch = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.queue = ""
}

func (t *RabbitTransport) pump(in <-chan amqp.Delivery, closed <-chan *amqp.Error, out chan<- appsync.PushMessage, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case amqpErr := <-closed:
			if amqpErr != nil {
				t.logger.Warn("rabbitmq connection closed", zap.Error(amqpErr))
			}
			return
		case d, ok := <-in:
			if !ok {
				return
			}
			msg, err := decodeEnvelope(d.Body)
			if err != nil {
				t.logger.Warn("discarding undecodable push payload", zap.Error(err))
				continue
			}
			select {
			case out <- msg:
			case <-done:
				return
			}
		}
	}
}
