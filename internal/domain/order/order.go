package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/foodhub/ordersync/internal/domain/shared"
)

// PaymentStatus represents the payment state of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// IsValid checks if the payment status is valid
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// Item represents a line item in an order. Items are immutable after the
// order is created; the only whole-order mutation is cancellation.
type Item struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// Order is the shared record both client roles observe through the backend
// of record. UpdatedAt is the server timestamp and the ordering key for
// merges; client receipt time plays no part in ordering.
type Order struct {
	ID            string
	CustomerID    string
	RestaurantID  string
	Items         []Item
	TotalAmount   decimal.Decimal
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks structural invariants of an order received from any source
func (o *Order) Validate() error {
	if o.ID == "" {
		return shared.NewDomainError("INVALID_ORDER_ID", "Order ID cannot be empty")
	}
	if !o.Status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Order status is not recognized")
	}
	if o.UpdatedAt.IsZero() {
		return shared.NewDomainError("INVALID_TIMESTAMP", "Order updated timestamp cannot be zero")
	}
	if o.TotalAmount.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Order total cannot be negative")
	}
	return nil
}

// OwnerID returns the owning party identifier for the given role.
func (o *Order) OwnerID(role Role) string {
	if role == RoleRestaurant {
		return o.RestaurantID
	}
	return o.CustomerID
}

// Clone returns a deep copy of the order. Store subscribers and readers
// receive clones so shared state is never aliased outside the store.
func (o *Order) Clone() Order {
	c := *o
	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

// Draft describes a new order before the backend of record assigns its
// identity. Creation is a passthrough: the authoritative record arrives
// back as a fact.
type Draft struct {
	RestaurantID string
	Items        []Item
}

// Validate checks the draft is submittable
func (d *Draft) Validate() error {
	if d.RestaurantID == "" {
		return shared.NewDomainError("INVALID_RESTAURANT", "Restaurant ID cannot be empty")
	}
	if len(d.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot place an order without items")
	}
	for _, it := range d.Items {
		if it.Quantity <= 0 {
			return shared.NewDomainError("INVALID_QUANTITY", "Item quantity must be positive")
		}
		if it.UnitPrice.IsNegative() {
			return shared.NewDomainError("INVALID_PRICE", "Item price cannot be negative")
		}
	}
	return nil
}

// Total computes the draft total from its items.
func (d *Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
