package gossip

import (
	"testing"
)

func TestSubscribeReceivesOwnCompetitionOnly(t *testing.T) {
	g := NewGossiper()
	ch, cancel := g.Subscribe("alice", "cup")
	defer cancel()

	g.Publish(Event{Type: EventMatchCompleted, Owner: "alice", ID: "cup", Match: 3})
	g.Publish(Event{Type: EventMatchCompleted, Owner: "alice", ID: "other", Match: 9})

	ev := <-ch
	if ev.Match != 3 {
		t.Errorf("received match %d, want 3", ev.Match)
	}
	select {
	case ev := <-ch:
		t.Errorf("received event for another competition: %+v", ev)
	default:
	}
}

func TestFanOut(t *testing.T) {
	g := NewGossiper()
	ch1, cancel1 := g.Subscribe("alice", "cup")
	defer cancel1()
	ch2, cancel2 := g.Subscribe("alice", "cup")
	defer cancel2()

	g.Publish(Event{Type: EventRoundAdvanced, Owner: "alice", ID: "cup", Round: 2})

	for i, ch := range []<-chan Event{ch1, ch2} {
		ev := <-ch
		if ev.Round != 2 {
			t.Errorf("subscriber %d got round %d, want 2", i, ev.Round)
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	g := NewGossiper()
	ch, cancel := g.Subscribe("alice", "cup")
	cancel()

	if _, ok := <-ch; ok {
		t.Errorf("channel still open after cancel")
	}

	// Publishing after the last cancel must not panic or block.
	g.Publish(Event{Type: EventMatchCompleted, Owner: "alice", ID: "cup"})
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	g := NewGossiper()
	ch, cancel := g.Subscribe("alice", "cup")
	defer cancel()

	// Nobody is draining; fill the buffer and then some.  If Publish
	// blocked, this test would hang.
	for i := 0; i < subscriberBuffer+5; i++ {
		g.Publish(Event{Type: EventMatchCompleted, Owner: "alice", ID: "cup", Match: i})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != subscriberBuffer {
		t.Errorf("received %d buffered events, want %d", received, subscriberBuffer)
	}
}
