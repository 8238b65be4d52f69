package order

import "time"

// Source identifies which path delivered a fact to the store
type Source string

const (
	// SourcePush is a fact delivered over the realtime channel
	SourcePush Source = "push"
	// SourcePoll is a fact produced by the reconciliation poller
	SourcePoll Source = "poll"
	// SourceOptimistic is a provisional local fact applied before the
	// server has confirmed a mutation
	SourceOptimistic Source = "optimistic"
	// SourceServerAck is the server's authoritative response to a mutation
	SourceServerAck Source = "serverAck"
)

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	switch s {
	case SourcePush, SourcePoll, SourceOptimistic, SourceServerAck:
		return true
	}
	return false
}

// Authoritative reports whether facts from this source represent
// server-side truth. Optimistic facts are provisional until acknowledged.
func (s Source) Authoritative() bool {
	return s == SourcePush || s == SourcePoll || s == SourceServerAck
}

// Fact is the unit exchanged between the channel client, the poller and
// the mutation coordinator on one side and the order store on the other.
// Facts are idempotent: applying the same fact twice is a no-op.
type Fact struct {
	Order      Order
	Source     Source
	ReceivedAt time.Time
}

// NewFact wraps an order as a fact from the given source.
func NewFact(o Order, source Source) Fact {
	return Fact{Order: o, Source: source, ReceivedAt: time.Now()}
}
