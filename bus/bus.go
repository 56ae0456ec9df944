// Package bus provides the typed publish/subscribe surface the rest of
// the core uses to emit and consume chat events, independent of
// transport. Delivery is at-most-once: events published with no
// subscriber are dropped, nothing is buffered or replayed.
package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"chat-sync/domain/event"
)

type Handler func(e event.DomainEvent)

// Subscription is the cancellation token returned by Subscribe.
// Cancel is idempotent.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

type subscriber struct {
	id int
	fn Handler
}

type Bus struct {
	mu     sync.Mutex
	log    *slog.Logger
	nextID int
	subs   map[event.Kind][]subscriber
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[event.Kind][]subscriber),
	}
}

// Subscribe registers a handler for one event kind. Handlers of the
// same kind are invoked in subscription order.
func (b *Bus) Subscribe(kind event.Kind, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscriber{id: id, fn: fn})

	return &Subscription{cancel: func() { b.remove(kind, id) }}
}

// Publish delivers an event to every current subscriber of its kind.
// A panicking handler must not prevent delivery to the others, so each
// invocation is isolated.
func (b *Bus) Publish(e event.DomainEvent) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs[e.Kind()]))
	copy(subs, b.subs[e.Kind()])
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscriber, e event.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(fmt.Sprintf("Subscriber panicked on %s", e.Kind()), "panic", r)
		}
	}()
	s.fn(e)
}

func (b *Bus) remove(kind event.Kind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[kind]
	for i, s := range subs {
		if s.id == id {
			b.subs[kind] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
