// Package eventbus fans persisted engine events out to in-process
// subscribers — a CLI status line, a test observer, or (eventually) a
// dashboard — without coupling the engine's step loop to any particular
// consumer.
//
// Same register/unregister/broadcast channel shape as a WebSocket-client
// registry, generalized to a plain in-process Event channel.
package eventbus

import (
	"log"
	"sync"
)

// Kind identifies which persisted record an Event wraps.
type Kind string

const (
	KindDecision     Kind = "decision"
	KindFill         Kind = "fill"
	KindRejection    Kind = "rejection"
	KindRegimeChange Kind = "regime_change"
	KindSnapshot     Kind = "snapshot"
)

// Event is the envelope published for every persisted record: a Kind plus
// Data, without the JSON-for-the-wire tags an in-process bus doesn't need.
type Event struct {
	Kind Kind
	Data interface{}
}

// Subscription is a registered listener's handle, used to Unsubscribe.
type Subscription struct {
	id int
	ch chan Event
}

// Events returns the channel this subscription receives on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Bus manages subscriber registration and fan-out, run in its own
// goroutine via Run. A Bus with no subscribers simply drops events —
// Publish never blocks the engine's step loop.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	subs      map[int]chan Event
	publish   chan Event
	subscribe chan *Subscription
	unsub     chan int
	shutdown  chan struct{}
	logger    *log.Logger
}

// New builds a Bus. Call Run in a goroutine before Publish-ing.
func New(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(log.Writer(), "[eventbus] ", log.LstdFlags)
	}
	return &Bus{
		subs:      make(map[int]chan Event),
		publish:   make(chan Event, 256),
		subscribe: make(chan *Subscription),
		unsub:     make(chan int),
		shutdown:  make(chan struct{}),
		logger:    logger,
	}
}

// Subscribe registers a new listener with a buffered channel, capacity buf.
func (b *Bus) Subscribe(buf int) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	sub := &Subscription{id: id, ch: make(chan Event, buf)}
	select {
	case b.subscribe <- sub:
	case <-b.shutdown:
	}
	return sub
}

// Unsubscribe removes a listener; its channel is closed by Run.
func (b *Bus) Unsubscribe(sub *Subscription) {
	select {
	case b.unsub <- sub.id:
	case <-b.shutdown:
	}
}

// Publish fans an event out to every current subscriber. Non-blocking per
// subscriber: a slow listener is skipped for that event rather than
// stalling the engine.
func (b *Bus) Publish(ev Event) {
	select {
	case b.publish <- ev:
	case <-b.shutdown:
	}
}

// Run drives the registration/fan-out loop until Shutdown is called.
func (b *Bus) Run() {
	for {
		select {
		case sub := <-b.subscribe:
			b.mu.Lock()
			b.subs[sub.id] = sub.ch
			b.mu.Unlock()

		case id := <-b.unsub:
			b.mu.Lock()
			if ch, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()

		case ev := <-b.publish:
			b.mu.Lock()
			for id, ch := range b.subs {
				select {
				case ch <- ev:
				default:
					b.logger.Printf("eventbus: subscriber %d channel full, dropping %s event", id, ev.Kind)
				}
			}
			b.mu.Unlock()

		case <-b.shutdown:
			return
		}
	}
}

// Shutdown stops Run and closes every subscriber channel.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	close(b.shutdown)
}
