package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// SnapshotCache persists order snapshots locally so a restarted client
// shows the last known state before the first poll lands. Best effort:
// cache failures never interrupt the sync flow.
type SnapshotCache interface {
	SaveSnapshot(ctx context.Context, o order.Order) error
	LoadAll(ctx context.Context) ([]order.Order, error)
}

// Session assembles the sync core for one authenticated identity: store,
// channel client, reconciliation poller, mutation coordinator and the
// optional local snapshot cache. The channel is an explicit instance owned
// by the session lifecycle, constructed on login and torn down on logout.
type Session struct {
	store       *Store
	channel     *Channel
	poller      *Poller
	coordinator *Coordinator
	cache       SnapshotCache
	logger      *zap.Logger

	cacheSub cancelFunc
}

type cancelFunc func()

// snapshotWriteTimeout bounds a single cache write
const snapshotWriteTimeout = 5 * time.Second

// SessionDeps carries the collaborators a session wires together
type SessionDeps struct {
	Store       *Store
	Channel     *Channel
	Poller      *Poller
	Coordinator *Coordinator
	// Cache is optional; nil disables local snapshot persistence
	Cache  SnapshotCache
	Logger *zap.Logger
}

// NewSession creates a session from its collaborators
func NewSession(deps SessionDeps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:       deps.Store,
		channel:     deps.Channel,
		poller:      deps.Poller,
		coordinator: deps.Coordinator,
		cache:       deps.Cache,
		logger:      logger,
	}
}

// Store exposes the session's order store for UI subscriptions
func (s *Session) Store() *Store { return s.store }

// Coordinator exposes the mutation entry point
func (s *Session) Coordinator() *Coordinator { return s.coordinator }

// Start hydrates from the local cache, brings up the push channel and the
// reconciliation poller, and begins persisting snapshots on every store
// change. The context governs the session lifetime: cancelling it is
// logout, which tears the channel down without retry.
func (s *Session) Start(ctx context.Context) {
	if s.cache != nil {
		cached, err := s.cache.LoadAll(ctx)
		if err != nil {
			s.logger.Warn("snapshot cache hydrate failed", zap.Error(err))
		} else if len(cached) > 0 {
			s.store.Hydrate(cached)
			s.logger.Info("hydrated store from snapshot cache", zap.Int("orders", len(cached)))
		}

		subID := s.store.Subscribe(func(ch Change) {
			// Provisional snapshots carry a client-stamped timestamp the
			// server never issued; persisting one would let a rolled-back
			// status outlive the session. Only settled state is cached.
			if ch.Pending {
				return
			}
			// Detached from the session context: the write is best effort
			// and a snapshot racing logout should still land.
			writeCtx, cancel := context.WithTimeout(context.Background(), snapshotWriteTimeout)
			defer cancel()
			if err := s.cache.SaveSnapshot(writeCtx, ch.Order); err != nil {
				s.logger.Warn("snapshot persist failed",
					zap.String("order_id", ch.Order.ID),
					zap.Error(err),
				)
			}
		})
		s.cacheSub = func() { s.store.Unsubscribe(subID) }
	}

	s.channel.Start(ctx)
	s.poller.Start(ctx)
}

// Close stops the poller and channel and detaches the cache subscriber.
func (s *Session) Close() {
	s.poller.Stop()
	s.channel.Stop()
	if s.cacheSub != nil {
		s.cacheSub()
		s.cacheSub = nil
	}
}
