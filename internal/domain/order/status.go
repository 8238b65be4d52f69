package order

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPlaced         Status = "PLACED"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReady          Status = "READY"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Role identifies which party is acting on an order
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
)

// IsValid checks if the role is a valid Role
func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleRestaurant
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// next returns the forward step in the preparation chain, or "" for none.
func (s Status) next() Status {
	switch s {
	case StatusPlaced:
		return StatusConfirmed
	case StatusConfirmed:
		return StatusPreparing
	case StatusPreparing:
		return StatusReady
	case StatusReady:
		return StatusOutForDelivery
	case StatusOutForDelivery:
		return StatusDelivered
	}
	return ""
}

// CanTransitionTo checks if the status can transition to the target status
// when the given role is acting. The graph itself and the role guards
// mirror server-side enforcement exactly; the client copy exists to reject
// doomed round-trips before any network call.
//
// Forward steps (PLACED->CONFIRMED->PREPARING->READY->OUT_FOR_DELIVERY->DELIVERED)
// belong to the restaurant. Cancellation belongs to the customer and is only
// possible from PLACED or CONFIRMED; once preparation has started the order
// is no longer cancellable.
func (s Status) CanTransitionTo(target Status, acting Role) bool {
	if !s.IsValid() || !target.IsValid() || !acting.IsValid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if target == StatusCancelled {
		return acting == RoleCustomer && (s == StatusPlaced || s == StatusConfirmed)
	}
	return acting == RoleRestaurant && s.next() == target
}

// NextAllowed returns the set of statuses the acting role may move to from s.
func (s Status) NextAllowed(acting Role) []Status {
	allowed := make([]Status, 0, 2)
	for _, target := range []Status{
		StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled,
	} {
		if s.CanTransitionTo(target, acting) {
			allowed = append(allowed, target)
		}
	}
	return allowed
}
