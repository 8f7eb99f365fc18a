package ledger

import (
	"time"

	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
)

// EventKind identifies the type of a ledger event.
type EventKind string

// Event kinds emitted by the ledger.
const (
	EventStaked   EventKind = "staked"
	EventUnstaked EventKind = "unstaked"
	EventTransfer EventKind = "transfer"
	EventApproval EventKind = "approval"
)

// Event records a committed ledger mutation for off-chain observability.
// Events are advisory: they are emitted strictly after state is
// committed and are not part of the ledger's correctness invariants.
type Event struct {
	Kind      EventKind     `json:"kind"`
	Account   types.Address `json:"account,omitempty"` // staked/unstaked
	From      types.Address `json:"from,omitempty"`    // transfer
	To        types.Address `json:"to,omitempty"`      // transfer
	Owner     types.Address `json:"owner,omitempty"`   // approval
	Spender   types.Address `json:"spender,omitempty"` // approval
	Amount    *uint256.Int  `json:"amount"`
	Timestamp time.Time     `json:"timestamp"`
}

// EventSink receives events after each committed mutation.
type EventSink interface {
	Emit(ev Event) error
}

// MemorySink collects events in memory. Used in tests and as a default
// when no journal is configured.
type MemorySink struct {
	events []Event
}

// NewMemorySink creates an empty in-memory event sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit appends the event.
func (s *MemorySink) Emit(ev Event) error {
	s.events = append(s.events, ev)
	return nil
}

// Events returns all collected events in emission order.
func (s *MemorySink) Events() []Event {
	return s.events
}
