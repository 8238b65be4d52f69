package sync

import (
	"sync"

	"github.com/foodhub/ordersync/internal/domain/order"
)

// HiddenSet is the restaurant-side "remove from list" soft hide. It is
// display state only: hiding never mutates an order's status and never
// reaches the backend, and the store keeps the record so later facts for
// a hidden order still merge normally.
type HiddenSet struct {
	mu     sync.RWMutex
	hidden map[string]struct{}
}

// NewHiddenSet creates an empty hidden set
func NewHiddenSet() *HiddenSet {
	return &HiddenSet{hidden: make(map[string]struct{})}
}

// Hide marks an order as hidden from list views
func (h *HiddenSet) Hide(orderID string) {
	h.mu.Lock()
	h.hidden[orderID] = struct{}{}
	h.mu.Unlock()
}

// Unhide restores an order to list views
func (h *HiddenSet) Unhide(orderID string) {
	h.mu.Lock()
	delete(h.hidden, orderID)
	h.mu.Unlock()
}

// IsHidden reports whether an order is currently hidden
func (h *HiddenSet) IsHidden(orderID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.hidden[orderID]
	return ok
}

// Filter returns the orders that are not hidden, preserving input order.
func (h *HiddenSet) Filter(orders []order.Order) []order.Order {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if _, ok := h.hidden[o.ID]; !ok {
			out = append(out, o)
		}
	}
	return out
}
