package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// ChannelState represents the connection state of the realtime channel
type ChannelState string

const (
	ChannelDisconnected ChannelState = "DISCONNECTED"
	ChannelConnecting   ChannelState = "CONNECTING"
	ChannelConnected    ChannelState = "CONNECTED"
	ChannelJoined       ChannelState = "JOINED"
)

// Room identifies a push fan-out scope. The backend fans every status
// change out to the affected customer's room and the affected restaurant's
// room; many connections (multi-device) may join the same room. Ownership
// of the room is the backend's; the client only requests membership.
type Room struct {
	Role    order.Role
	OwnerID string
}

// PushKind discriminates incoming push messages
type PushKind string

const (
	PushNewOrder     PushKind = "newOrder"
	PushOrderUpdated PushKind = "orderUpdated"
)

// PushMessage is a decoded push delivery
type PushMessage struct {
	Kind  PushKind
	Order order.Order
}

// Transport is one concrete push connection. Connect establishes a fresh
// connection, Join requests room membership on it, and Messages streams
// decoded deliveries until the connection drops, at which point the
// channel is closed and the caller reconnects from scratch (room
// membership is not preserved server-side across a disconnect).
type Transport interface {
	Connect(ctx context.Context) error
	Join(ctx context.Context, room Room) error
	Messages() <-chan PushMessage
	Close() error
}

// ChannelConfig holds reconnect policy for the channel client
type ChannelConfig struct {
	// ReconnectBase is the first reconnect delay
	ReconnectBase time.Duration
	// ReconnectMax caps the exponential backoff
	ReconnectMax time.Duration
}

// DefaultChannelConfig returns the default reconnect policy (1s doubling
// up to 30s, indefinitely while the session is authenticated)
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		ReconnectBase: 1 * time.Second,
		ReconnectMax:  30 * time.Second,
	}
}

// Channel owns one long-lived push connection per authenticated identity
// and forwards every received fact into the order store. It carries no
// business logic beyond translation. Session-scoped: one instance per
// identity, torn down only on logout via context cancellation.
type Channel struct {
	config    ChannelConfig
	transport Transport
	room      Room
	store     *Store
	logger    *zap.Logger

	state atomic.Value // ChannelState

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewChannel creates a channel client for the given room
func NewChannel(config ChannelConfig, transport Transport, room Room, store *Store, logger *zap.Logger) *Channel {
	if config.ReconnectBase <= 0 {
		config.ReconnectBase = DefaultChannelConfig().ReconnectBase
	}
	if config.ReconnectMax <= 0 {
		config.ReconnectMax = DefaultChannelConfig().ReconnectMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Channel{
		config:    config,
		transport: transport,
		room:      room,
		store:     store,
		logger:    logger,
	}
	c.state.Store(ChannelDisconnected)
	return c
}

// State returns the current connection state
func (c *Channel) State() ChannelState {
	return c.state.Load().(ChannelState)
}

// Start runs the connect/join/consume loop until the context is
// cancelled. Cancellation is the logout path: immediate teardown, no
// retry. Idempotent.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)
}

// Stop tears the channel down and waits for the loop to exit. Idempotent.
func (c *Channel) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		_ = c.transport.Close()
		c.setState(ChannelDisconnected)
	}()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(ChannelConnecting)
		if err := c.transport.Connect(ctx); err != nil {
			if !c.sleepBackoff(ctx, attempt, err) {
				return
			}
			attempt++
			continue
		}
		c.setState(ChannelConnected)

		// Membership is lost on every disconnect, so the join is
		// re-issued after each successful connect.
		if err := c.transport.Join(ctx, c.room); err != nil {
			_ = c.transport.Close()
			if !c.sleepBackoff(ctx, attempt, err) {
				return
			}
			attempt++
			continue
		}
		c.setState(ChannelJoined)
		c.logger.Info("joined room",
			zap.String("role", c.room.Role.String()),
			zap.String("owner_id", c.room.OwnerID),
		)
		attempt = 0

		c.consume(ctx)
		c.setState(ChannelDisconnected)
		if ctx.Err() != nil {
			return
		}

		// Re-dial after the base delay, not immediately: a server that
		// accepts and instantly drops must not be hammered in a tight loop.
		c.logger.Warn("push connection dropped, reconnecting",
			zap.Duration("retry_in", c.config.ReconnectBase),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.config.ReconnectBase):
		}
	}
}

// consume forwards push deliveries into the store until the stream closes
// (connection drop) or the context is cancelled.
func (c *Channel) consume(ctx context.Context) {
	msgs := c.transport.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.store.Merge(order.NewFact(msg.Order, order.SourcePush))
		}
	}
}

// sleepBackoff waits the exponential reconnect delay for the given
// attempt. Returns false when the context was cancelled while waiting.
func (c *Channel) sleepBackoff(ctx context.Context, attempt int, cause error) bool {
	delay := c.backoffDelay(attempt)
	c.logger.Warn("push connection attempt failed",
		zap.Int("attempt", attempt+1),
		zap.Duration("retry_in", delay),
		zap.Error(cause),
	)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// backoffDelay computes base * 2^attempt capped at the configured maximum.
func (c *Channel) backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := c.config.ReconnectBase * time.Duration(1<<attempt)
	if delay > c.config.ReconnectMax || delay <= 0 {
		delay = c.config.ReconnectMax
	}
	return delay
}

func (c *Channel) setState(s ChannelState) {
	c.state.Store(s)
}
