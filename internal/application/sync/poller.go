package sync

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// Fetcher produces the authoritative order list for the session identity.
// The gateway satisfies this; tests substitute fakes.
type Fetcher interface {
	FetchOrders(ctx context.Context) ([]order.Order, error)
}

// PollerConfig holds configuration for the reconciliation poller
type PollerConfig struct {
	// Interval is the fixed cadence between ticks
	Interval time.Duration
	// FetchTimeout bounds a single tick's fetch
	FetchTimeout time.Duration
	// Jitter, when positive, delays each tick by a random duration up to
	// this bound so a fleet of clients does not poll in lockstep. Zero
	// disables it.
	Jitter time.Duration
}

// DefaultPollerConfig returns the default poller cadence
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:     10 * time.Second,
		FetchTimeout: 5 * time.Second,
	}
}

// Poller is the correctness backstop of the sync core, not an
// optimization. It runs on a fixed cadence independently of channel
// health; because the store's merge is monotonic on the server timestamp,
// a slow or out-of-order poll response can never undo a more recent
// push-delivered status. Scoped to the active screen/session: started on
// focus, stopped on unmount.
type Poller struct {
	config  PollerConfig
	store   *Store
	fetcher Fetcher
	logger  *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// NewPoller creates a reconciliation poller
func NewPoller(config PollerConfig, store *Store, fetcher Fetcher, logger *zap.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollerConfig().Interval
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultPollerConfig().FetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		config:  config,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Start begins polling. The first tick fires immediately so a freshly
// focused screen converges without waiting a full interval. Idempotent.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("reconciliation poller started",
		zap.Duration("interval", p.config.Interval),
	)
}

// Stop cancels the polling loop and waits for it to drain. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("reconciliation poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick fetches the authoritative list and feeds every order to the store
// as a poll fact. A failed fetch is invisible to the user: the tick is
// skipped and the next interval retries.
func (p *Poller) tick(ctx context.Context) {
	if p.config.Jitter > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(rand.N(p.config.Jitter)):
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	orders, err := p.fetcher.FetchOrders(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("poll tick failed, will retry next interval", zap.Error(err))
		return
	}

	merged := 0
	for _, o := range orders {
		if p.store.Merge(order.NewFact(o, order.SourcePoll)) {
			merged++
		}
	}
	if merged > 0 {
		p.logger.Debug("poll reconciled orders",
			zap.Int("fetched", len(orders)),
			zap.Int("merged", merged),
		)
	}
}
