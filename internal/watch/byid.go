package watch

import (
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/record"
)

// GetByID is the lookup a watchById subscription re-runs after every event.
type GetByID func(id string) (record.Record, bool)

// SubscribeByID is watchById (spec.md §4.11): it emits the entity (or nil
// when absent) on first subscription and again on every create, update,
// delete, or reload event — filtered here to events whose ID matches, plus
// every reload (a reload replaces the whole collection mapping, so any row
// may have changed or disappeared).
func SubscribeByID(bus *eventbus.Bus, collection, id string, get GetByID) *Subscription {
	events, cancelSub := bus.Subscribe(collection)
	out := make(chan Result, 1)
	done := make(chan struct{})

	stop := func() {
		close(done)
		cancelSub()
	}

	go runByID(events, out, done, id, get)

	return &Subscription{Results: out, stop: stop}
}

func runByID(events <-chan eventbus.Event, out chan<- Result, done <-chan struct{}, id string, get GetByID) {
	defer close(out)

	last, ok := emitOne(get, id)
	if !emit(out, done, last) {
		return
	}

	for {
		select {
		case <-done:
			return
		case evt, chanOK := <-events:
			if !chanOK {
				return
			}
			if evt.Kind != eventbus.Reload && evt.ID != id {
				continue
			}
			next, nextOK := emitOne(get, id)
			if nextOK == ok && sameOne(last, next) {
				continue
			}
			ok = nextOK
			last = next
			if !emit(out, done, last) {
				return
			}
		}
	}
}

func emitOne(get GetByID, id string) (Result, bool) {
	rec, found := get(id)
	if !found {
		return Result{Records: nil}, false
	}
	return Result{Records: []record.Record{rec}}, true
}

func sameOne(a, b Result) bool {
	return record.SliceDeepEqual(a.Records, b.Records)
}
