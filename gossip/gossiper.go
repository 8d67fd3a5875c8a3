package gossip

import (
	"log"
	"sync"

	"github.com/ts4z/knockout/model"
	"github.com/ts4z/knockout/varz"
)

var (
	gossiperPublished = varz.NewInt("published")
	gossiperDropped   = varz.NewInt("dropped")
)

const subscriberBuffer = 16

// Gossiper is an in-process Sink that fans events out to subscribers by
// competition.  Subscribers that fall behind lose events rather than stall
// the publisher.
type Gossiper struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

func NewGossiper() *Gossiper {
	return &Gossiper{
		subs: make(map[string][]chan Event),
	}
}

var _ Sink = (*Gossiper)(nil)

// Subscribe registers interest in one competition's events.  The returned
// cancel func must be called exactly once; after it returns the channel is
// closed.
func (g *Gossiper) Subscribe(owner model.Address, id string) (<-chan Event, func()) {
	key := model.Key(owner, id)
	ch := make(chan Event, subscriberBuffer)

	g.mu.Lock()
	g.subs[key] = append(g.subs[key], ch)
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		chans := g.subs[key]
		for i, c := range chans {
			if c == ch {
				g.subs[key] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(g.subs[key]) == 0 {
			delete(g.subs, key)
		}
		close(ch)
	}
	return ch, cancel
}

func (g *Gossiper) Publish(ev Event) {
	key := model.Key(ev.Owner, ev.ID)

	g.mu.Lock()
	defer g.mu.Unlock()

	gossiperPublished.Add(1)
	for _, ch := range g.subs[key] {
		select {
		case ch <- ev:
		default:
			gossiperDropped.Add(1)
			log.Printf("gossip: dropping %s event for %s, slow subscriber", ev.Type, key)
		}
	}
}
