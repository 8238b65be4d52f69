// Package realtime provides the concrete push transports behind the
// channel client: Redis pub/sub and a RabbitMQ topic exchange. A room
// (role, ownerId) maps to a Redis channel or an AMQP binding key; the
// backend fans every status change out to both owning parties' rooms.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appsync "github.com/foodhub/ordersync/internal/application/sync"
)

// pushEnvelope is the wire shape of a push delivery
type pushEnvelope struct {
	Event string          `json:"event"`
	Order json.RawMessage `json:"order"`
}

// roomChannel builds the Redis channel name for a room
func roomChannel(room appsync.Room) string {
	return fmt.Sprintf("orders:room:%s:%s", room.Role, room.OwnerID)
}

// RedisConfig holds Redis transport settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisTransport implements sync.Transport over Redis pub/sub.
type RedisTransport struct {
	config RedisConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *redis.Client
	pubsub *redis.PubSub
	msgs   chan appsync.PushMessage
	done   chan struct{}
}

// NewRedisTransport creates a Redis pub/sub transport
func NewRedisTransport(cfg RedisConfig, logger *zap.Logger) *RedisTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTransport{config: cfg, logger: logger}
}

// Connect implements sync.Transport. Each call establishes a fresh
// client so a reconnect starts from a clean slate.
func (t *RedisTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()

	client := redis.NewClient(&redis.Options{
		Addr:     t.config.Addr,
		Password: t.config.Password,
		DB:       t.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	t.client = client
	return nil
}

// Join implements sync.Transport: subscribes to the room's channel and
// starts decoding deliveries.
func (t *RedisTransport) Join(ctx context.Context, room appsync.Room) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return fmt.Errorf("not connected")
	}

	pubsub := t.client.Subscribe(ctx, roomChannel(room))
	// Confirm the subscription before reporting the room as joined.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to join room: %w", err)
	}

	t.pubsub = pubsub
	t.msgs = make(chan appsync.PushMessage, 64)
	t.done = make(chan struct{})
	go t.pump(pubsub.Channel(), t.msgs, t.done)
	return nil
}

// Messages implements sync.Transport
func (t *RedisTransport) Messages() <-chan appsync.PushMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.msgs
}

// Close implements sync.Transport
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
	return nil
}

func (t *RedisTransport) teardownLocked() {
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	if t.pubsub != nil {
		_ = t.pubsub.Close()
		t.pubsub = nil
	}
	if t.client != nil {
		_ = t.client.Close()
		t.client = nil
	}
}

// pump decodes raw pub/sub payloads into push messages until the
// subscription closes.
func (t *RedisTransport) pump(in <-chan *redis.Message, out chan<- appsync.PushMessage, done <-chan struct{}) {
	defer close(out)
	for {
		select {
		case <-done:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			msg, err := decodeEnvelope([]byte(raw.Payload))
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
