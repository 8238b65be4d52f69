package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// Gateway is the request-response surface of the backend of record
// consumed by the coordinator and the poller.
type Gateway interface {
	// CreateOrder submits a new order and returns the authoritative record
	CreateOrder(ctx context.Context, draft order.Draft) (order.Order, error)
	// TransitionOrder requests a status transition and returns the full
	// updated order. A server-side conflict is reported as a
	// *ConflictError carrying the server's current order.
	TransitionOrder(ctx context.Context, orderID string, target order.Status) (order.Order, error)
	// FetchOrders lists the authoritative orders for the session identity
	FetchOrders(ctx context.Context) ([]order.Order, error)
	// FetchOrder fetches a single authoritative order
	FetchOrder(ctx context.Context, orderID string) (order.Order, error)
}

// ConflictError is returned by a gateway when the server rejects a
// transition because its state already moved past it. The server's current
// order is authoritative and must be merged.
type ConflictError struct {
	Current order.Order
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("transition rejected, server already at %s", e.Current.Status)
}

// Coordinator is the only path through which a user action reaches the
// network. It applies a provisional local fact, issues the request with a
// bounded timeout, and feeds the server's authoritative response or a
// rollback back into the store. One in-flight mutation per order.
type Coordinator struct {
	store   *Store
	gateway Gateway
	role    order.Role
	timeout time.Duration
	logger  *zap.Logger
}

// DefaultMutationTimeout bounds a single mutation request
const DefaultMutationTimeout = 10 * time.Second

// NewCoordinator creates a mutation coordinator acting as the given role
func NewCoordinator(store *Store, gateway Gateway, role order.Role, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:   store,
		gateway: gateway,
		role:    role,
		timeout: timeout,
		logger:  logger,
	}
}

// Transition applies a status transition to a known order.
//
// The transition engine is consulted first: a disallowed transition fails
// with ErrInvalidTransition before any network call. The optimistic fact
// makes the UI reflect the action instantly; the server's response always
// settles the record, and a failed or timed-out request rolls the store
// back to the pre-mutation snapshot.
func (c *Coordinator) Transition(ctx context.Context, orderID string, target order.Status) error {
	current, ok := c.store.GetByID(orderID)
	if !ok {
		return order.ErrUnknownOrder
	}
	if c.store.Pending(orderID) {
		return order.ErrAlreadyPending
	}
	if !current.Status.CanTransitionTo(target, c.role) {
		return fmt.Errorf("%w: %s -> %s as %s", order.ErrInvalidTransition, current.Status, target, c.role)
	}

	optimistic := current.Clone()
	optimistic.Status = target
	optimistic.UpdatedAt = time.Now()
	if err := c.store.BeginOptimistic(optimistic); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	updated, err := c.gateway.TransitionOrder(reqCtx, orderID, target)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			// The server's current state is authoritative: it replaces
			// the optimistic guess and the conflict is surfaced.
			c.settle(orderID, conflict.Current)
			c.logger.Info("transition conflicted with server state",
				zap.String("order_id", orderID),
				zap.String("requested", target.String()),
				zap.String("server_status", conflict.Current.Status.String()),
			)
			return fmt.Errorf("%w: server at %s", order.ErrConflict, conflict.Current.Status)
		}

		c.store.Rollback(orderID)
		c.logger.Warn("transition request failed, rolled back",
			zap.String("order_id", orderID),
			zap.String("requested", target.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", order.ErrMutationFailed, err)
	}

	c.settle(orderID, updated)
	return nil
}

// settle merges the server's authoritative response for a mutation. A
// response whose timestamp does not advance past the confirmed baseline
// is dropped by the merge rule, which would leave the record pending
// forever; the retained snapshot is restored instead.
func (c *Coordinator) settle(orderID string, authoritative order.Order) {
	if !c.store.Merge(order.NewFact(authoritative, order.SourceServerAck)) {
		c.store.Rollback(orderID)
	}
}

// PlaceOrder submits a new order. Creation is not optimistic: the backend
// assigns identity and timestamps, and the authoritative record arrives
// back as a serverAck fact (and again as a newOrder push to the room).
func (c *Coordinator) PlaceOrder(ctx context.Context, draft order.Draft) (order.Order, error) {
	if err := draft.Validate(); err != nil {
		return order.Order{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.gateway.CreateOrder(reqCtx, draft)
	if err != nil {
		return order.Order{}, fmt.Errorf("%w: %v", order.ErrMutationFailed, err)
	}

	c.store.Merge(order.NewFact(created, order.SourceServerAck))
	return created, nil
}
