// Package sync implements the order lifecycle synchronization core: the
// order store with its monotonic merge rule, the realtime channel client,
// the reconciliation poller and the optimistic mutation coordinator.
package sync

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// Change is delivered to subscribers after every observable store
// change. Pending marks a provisional snapshot: an optimistic mutation
// still awaiting the server's verdict, which a later change either
// settles or rolls back.
type Change struct {
	Order   order.Order
	Pending bool
}

// Subscriber receives an immutable snapshot of an order after every
// observable change. Dropped stale facts and repeated identical facts
// produce no notification. Changes to the same order are delivered in
// apply order; a subscriber must not mutate the store for the order it
// is being notified about.
type Subscriber func(Change)

// record is the store's internal per-order state. While an optimistic
// mutation is in flight the last confirmed snapshot is retained so the
// coordinator can roll back. notifyMu serializes subscriber dispatch in
// apply order: it is acquired while mu is still held, so a concurrent
// merge cannot deliver a newer snapshot before an older one.
type record struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	current   order.Order
	pending   bool
	confirmed *order.Order
}

// baseline returns the confirmed server timestamp facts must beat to be
// applied. While pending, the retained confirmed snapshot is the baseline:
// the optimistic timestamp is a local guess and must not shadow
// authoritative facts produced by a slightly lagging server clock.
func (r *record) baseline() order.Order {
	if r.pending && r.confirmed != nil {
		return *r.confirmed
	}
	return r.current
}

// Store is the per-client authoritative cache of known orders and the
// single point where every incoming fact is merged. Merges for different
// orders proceed independently; two facts for the same order apply in a
// defined sequence under the per-record lock.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record

	subMu sync.RWMutex
	subs  map[uuid.UUID]Subscriber

	logger *zap.Logger
}

// NewStore creates an empty order store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		records: make(map[string]*record),
		subs:    make(map[uuid.UUID]Subscriber),
		logger:  logger,
	}
}

// Merge applies an incoming fact. The rule is monotonic on the server's
// UpdatedAt timestamp: regardless of which source reported it, a fact that
// does not advance past the confirmed baseline is silently dropped, so a
// slow poll response or an out-of-order push can never undo a newer status.
// Returns true if the fact produced an observable change.
func (s *Store) Merge(fact order.Fact) bool {
	if err := fact.Order.Validate(); err != nil {
		s.logger.Warn("discarding malformed fact",
			zap.String("order_id", fact.Order.ID),
			zap.String("source", string(fact.Source)),
			zap.Error(err),
		)
		return false
	}
	if !fact.Source.IsValid() {
		s.logger.Warn("discarding fact with unknown source",
			zap.String("order_id", fact.Order.ID),
			zap.String("source", string(fact.Source)),
		)
		return false
	}

	rec := s.getOrCreate(fact.Order.ID)

	rec.mu.Lock()
	applied := false
	switch {
	case rec.current.ID == "":
		// First fact wins the initial state.
		rec.current = fact.Order.Clone()
		if fact.Source == order.SourceOptimistic {
			rec.pending = true
		}
		applied = true
	case !fact.Order.UpdatedAt.After(rec.baseline().UpdatedAt):
		// Stale: not an error, not observable.
		s.logger.Debug("dropping stale fact",
			zap.String("order_id", fact.Order.ID),
			zap.String("source", string(fact.Source)),
			zap.Time("fact_updated_at", fact.Order.UpdatedAt),
			zap.Time("baseline_updated_at", rec.baseline().UpdatedAt),
		)
	case fact.Source == order.SourceOptimistic:
		// Provisional: retain the confirmed snapshot for rollback. A
		// second optimistic layer keeps the original snapshot.
		if !rec.pending {
			snapshot := rec.current.Clone()
			rec.confirmed = &snapshot
		}
		rec.current = fact.Order.Clone()
		rec.pending = true
		applied = true
	default:
		// Authoritative (push, poll, serverAck): overwrite, settle.
		rec.current = fact.Order.Clone()
		rec.pending = false
		rec.confirmed = nil
		applied = true
	}
	if !applied {
		rec.mu.Unlock()
		return false
	}
	change := Change{Order: rec.current.Clone(), Pending: rec.pending}
	rec.notifyMu.Lock()
	rec.mu.Unlock()
	s.notify(change)
	rec.notifyMu.Unlock()
	return true
}

// BeginOptimistic atomically verifies that no mutation is in flight for
// the order and applies the provisional fact, retaining the confirmed
// snapshot for rollback. Returns order.ErrAlreadyPending otherwise.
func (s *Store) BeginOptimistic(o order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	rec := s.getOrCreate(o.ID)

	rec.mu.Lock()
	if rec.pending {
		rec.mu.Unlock()
		return order.ErrAlreadyPending
	}
	if rec.current.ID != "" {
		snapshot := rec.current.Clone()
		rec.confirmed = &snapshot
	}
	rec.current = o.Clone()
	rec.pending = true
	change := Change{Order: rec.current.Clone(), Pending: true}
	rec.notifyMu.Lock()
	rec.mu.Unlock()
	s.notify(change)
	rec.notifyMu.Unlock()
	return nil
}

// Rollback restores the confirmed snapshot retained for an in-flight
// optimistic mutation. It is the authoritative "rollback fact" of a failed
// or timed-out mutation; a no-op when the order is not pending.
func (s *Store) Rollback(orderID string) bool {
	s.mu.RLock()
	rec := s.records[orderID]
	s.mu.RUnlock()
	if rec == nil {
		return false
	}

	rec.mu.Lock()
	if !rec.pending || rec.confirmed == nil {
		rec.mu.Unlock()
		return false
	}
	rec.current = rec.confirmed.Clone()
	rec.pending = false
	rec.confirmed = nil
	change := Change{Order: rec.current.Clone(), Pending: false}
	rec.notifyMu.Lock()
	rec.mu.Unlock()

	s.logger.Debug("rolled back optimistic mutation",
		zap.String("order_id", orderID),
		zap.String("status", change.Order.Status.String()),
	)
	s.notify(change)
	rec.notifyMu.Unlock()
	return true
}

// GetByID returns a snapshot of a single order
func (s *Store) GetByID(orderID string) (order.Order, bool) {
	s.mu.RLock()
	rec := s.records[orderID]
	s.mu.RUnlock()
	if rec == nil {
		return order.Order{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.current.Clone(), true
}

// Pending reports whether an optimistic mutation is in flight for the order
func (s *Store) Pending(orderID string) bool {
	s.mu.RLock()
	rec := s.records[orderID]
	s.mu.RUnlock()
	if rec == nil {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.pending
}

// GetAll returns snapshots of every known order, newest first
func (s *Store) GetAll() []order.Order {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]order.Order, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.current.Clone())
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Hydrate seeds the store from a locally persisted snapshot set. Entries
// go through the normal merge rules with poll authority, so hydrating
// after live traffic has started can never regress state.
func (s *Store) Hydrate(orders []order.Order) {
	for _, o := range orders {
		s.Merge(order.NewFact(o, order.SourcePoll))
	}
}

// Subscribe registers a subscriber and returns its registration ID
func (s *Store) Subscribe(fn Subscriber) uuid.UUID {
	id := uuid.New()
	s.subMu.Lock()
	s.subs[id] = fn
	s.subMu.Unlock()
	return id
}

// Unsubscribe removes a subscriber
func (s *Store) Unsubscribe(id uuid.UUID) {
	s.subMu.Lock()
	delete(s.subs, id)
	s.subMu.Unlock()
}

func (s *Store) getOrCreate(orderID string) *record {
	s.mu.RLock()
	rec := s.records[orderID]
	s.mu.RUnlock()
	if rec != nil {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec = s.records[orderID]; rec != nil {
		return rec
	}
	rec = &record{}
	s.records[orderID] = rec
	return rec
}

func (s *Store) notify(change Change) {
	s.subMu.RLock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		s.dispatch(fn, change)
	}
}

// dispatch safely invokes a subscriber
func (s *Store) dispatch(fn Subscriber, change Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked",
				zap.String("order_id", change.Order.ID),
				zap.Any("panic", r),
			)
		}
	}()
	change.Order = change.Order.Clone()
	fn(change)
}
