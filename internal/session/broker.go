package session

import (
	"sync"

	"github.com/echotutor/tutor-service/internal/model"
)

const subscriberBuffer = 16

// Broker fans tutoring results out to per-session subscribers
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.SectionResult]struct{}
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan model.SectionResult]struct{})}
}

// Subscribe returns a channel of results for sessionID and a function that
// unsubscribes. The channel is closed on unsubscribe or when the session goes away.
func (b *Broker) Subscribe(sessionID string) (<-chan model.SectionResult, func()) {
	ch := make(chan model.SectionResult, subscriberBuffer)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan model.SectionResult]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.remove(sessionID, ch) })
	}
}

func (b *Broker) remove(sessionID string, ch chan model.SectionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subs[sessionID]
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(b.subs, sessionID)
	}
}

// Publish delivers result to every subscriber of sessionID. Slow subscribers
// miss results rather than block the publisher. It returns how many were dropped.
func (b *Broker) Publish(sessionID string, result model.SectionResult) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for ch := range b.subs[sessionID] {
		select {
		case ch <- result:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribers returns the number of subscribers of sessionID
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

// CloseSession closes every subscription of sessionID
func (b *Broker) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[sessionID] {
		close(ch)
	}
	delete(b.subs, sessionID)
}

// CloseAll closes every subscription
func (b *Broker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
	}
}
