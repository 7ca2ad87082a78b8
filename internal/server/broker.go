package server

import (
	"encoding/json"
	"sync"

	"github.com/playperu/cityfinder/internal/round"
)

const subscriberBuffer = 32

// message is a JSON-encoded round event. Terminal is set for the last event
// a round ever publishes.
type message struct {
	Type     round.EventType
	Data     []byte
	Terminal bool
}

// Broker is an in-process pub/sub of round events, keyed by round ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan message]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan message]struct{}),
	}
}

// Subscribe returns a channel that receives the events of the round.
func (b *Broker) Subscribe(roundID string) chan message {
	ch := make(chan message, subscriberBuffer)
	b.mu.Lock()
	if b.subs[roundID] == nil {
		b.subs[roundID] = make(map[chan message]struct{})
	}
	b.subs[roundID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(roundID string, ch chan message) {
	b.mu.Lock()
	delete(b.subs[roundID], ch)
	if len(b.subs[roundID]) == 0 {
		delete(b.subs, roundID)
	}
	b.mu.Unlock()
}

// Publish sends ev to every subscriber of the round without blocking. When a
// subscriber's buffer is full, ordinary events are dropped and terminal
// events replace the oldest queued one.
func (b *Broker) Publish(roundID string, ev round.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.subs[roundID]) == 0 {
		return
	}

	data, _ := json.Marshal(ev)
	msg := message{Type: ev.Type, Data: data, Terminal: isTerminal(ev.Type)}
	for ch := range b.subs[roundID] {
		select {
		case ch <- msg:
			continue
		default:
		}
		if !msg.Terminal {
			continue
		}
		// Make room by dropping the oldest queued event.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func isTerminal(t round.EventType) bool {
	return t == round.EventComplete || t == round.EventAbandoned
}
