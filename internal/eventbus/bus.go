// Package eventbus is the single process-wide change-event broadcaster of
// spec.md §4.11: a publish/subscribe bus with per-subscription queues so a
// slow consumer never blocks a writer. Structurally this generalizes the
// teacher's eventbus.Bus (internal/eventbus/bus.go), which dispatches
// events to priority-ordered handlers under an RWMutex; ProseQL's
// subscribers are independent queues instead of synchronous callbacks,
// since each reactive query needs its own debounce and backlog.
package eventbus

import (
	"sync"

	"github.com/steveyegge/proseql/internal/record"
)

// Kind is the change-event discriminator.
type Kind string

const (
	Create Kind = "create"
	Update Kind = "update"
	Delete Kind = "delete"
	Reload Kind = "reload"
)

// Event is the change-event value of spec.md §3.
type Event struct {
	Collection string
	Kind       Kind
	ID         string
	Before     record.Record
	After      record.Record
}

// Bus is the process-wide broadcaster. The zero value is unusable; use New.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	collection string // "" subscribes to every collection
	queue      *queue
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe registers interest in one collection's events (or every
// collection's, if collection is ""). The returned channel never blocks
// the publisher: each subscription owns an unbounded internal queue.
// Cancel the returned func to unsubscribe.
func (b *Bus) Subscribe(collection string) (events <-chan Event, cancel func()) {
	q := newQueue()
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscription{collection: collection, queue: q}
	b.mu.Unlock()

	cancelFn := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		q.close()
	}
	return q.out, cancelFn
}

// Publish delivers evt, in call order, to every subscription whose
// collection matches (or which subscribed to all collections). Publish
// never blocks on a slow subscriber.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.collection == "" || s.collection == evt.Collection {
			s.queue.push(evt)
		}
	}
}

// PublishAll delivers a batch in order — used by the transaction
// coordinator to replay deferred events in causal order on commit
// (spec.md §4.10).
func (b *Bus) PublishAll(events []Event) {
	for _, e := range events {
		b.Publish(e)
	}
}
