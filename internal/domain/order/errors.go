package order

import "github.com/foodhub/ordersync/internal/domain/shared"

// Errors surfaced by the sync core. Stale facts are not an error: they are
// silently dropped by the store's ordering rule.
var (
	// ErrInvalidTransition is returned when the transition engine rejects
	// a requested status change before any network call is attempted
	ErrInvalidTransition = shared.NewDomainError("INVALID_TRANSITION", "Status transition is not allowed")
	// ErrAlreadyPending is returned when a mutation is attempted while
	// another mutation for the same order is still in flight
	ErrAlreadyPending = shared.NewDomainError("ALREADY_PENDING", "A mutation for this order is already in flight")
	// ErrMutationFailed is returned after a mutation request failed or
	// timed out and the optimistic change was rolled back
	ErrMutationFailed = shared.NewDomainError("MUTATION_FAILED", "Mutation request failed and was rolled back")
	// ErrConflict is returned when the server rejected a transition
	// because its state already moved past it
	ErrConflict = shared.NewDomainError("CONFLICT", "Server state already moved past the requested transition")
	// ErrUnknownOrder is returned when a mutation targets an order the
	// store has never seen
	ErrUnknownOrder = shared.NewDomainError("UNKNOWN_ORDER", "Order is not known to the local store")
)
