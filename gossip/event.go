// Package gossip carries fire-and-forget notifications out of the core.
//
// The core announces what happened; it never reads anything back.  Consumers
// (indexers, clients, tests) pick a Sink implementation; the core depends
// only on the interface, never on a transport.
package gossip

import (
	"github.com/ts4z/knockout/model"
)

type EventType string

const (
	EventMatchCompleted  EventType = "match-completed"
	EventRoundAdvanced   EventType = "round-advanced"
	EventPredictionSaved EventType = "prediction-saved"
	EventFeePaid         EventType = "fee-paid"
	EventRefunded        EventType = "refunded"
	EventClaimed         EventType = "claimed"
)

// Event is one structured notification.  Only the fields relevant to the
// Type are set; the rest stay zero.
type Event struct {
	Type  EventType
	Owner model.Address
	ID    string

	Match  int // match-completed
	Winner int // match-completed

	Round int // round-advanced: the 1-indexed round just closed

	User   model.Address // prediction-saved, fee-paid, refunded, claimed
	Amount int64         // fee-paid, refunded, claimed
	Picks  []int         // prediction-saved
}

// Sink accepts events.  Publish must not block the caller for long and must
// never fail; a sink that can't keep up drops events.
type Sink interface {
	Publish(Event)
}

// Discard is the no-op Sink.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(Event) {}
