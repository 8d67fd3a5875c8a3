package fakes

import (
	"sync"

	"github.com/ts4z/knockout/gossip"
)

// RecordingSink remembers every event published through it.
type RecordingSink struct {
	mu     sync.Mutex
	events []gossip.Event
}

var _ gossip.Sink = (*RecordingSink)(nil)

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Publish(ev gossip.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *RecordingSink) Events() []gossip.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gossip.Event(nil), s.events...)
}

// OfType returns the recorded events of one type, in order.
func (s *RecordingSink) OfType(t gossip.EventType) []gossip.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []gossip.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
