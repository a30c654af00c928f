// Package watch is the reactive-query layer of spec.md §4.11: a live query
// subscribes to the change bus, recomputes on every event touching its
// collection, and emits a deduplicated, optionally-debounced stream of
// result sets. Grounded on the teacher's internal/coop.Watcher (Watch
// returns a channel fed by a background goroutine, Close unsubscribes
// exactly once), generalized from one raw event channel to a
// recompute-and-compare loop over internal/eventbus.
package watch

import (
	"sync"
	"time"

	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/record"
)

// Recompute runs one query pass against current state. Subscribe calls it
// synchronously once on subscribe, then again after every debounce window
// that saw at least one relevant event.
type Recompute func() ([]record.Record, error)

// Subscription is a live query's handle. Results delivers one entry per
// change that produced a structurally different result set than the last
// one delivered (spec.md's "deduplicate adjacent identical result
// sequences"). Stop unsubscribes and closes Results; safe to call more than
// once and safe to call without draining Results first.
type Subscription struct {
	Results <-chan Result
	stop    func()
	once    sync.Once
}

// Result is one emission of a live query.
type Result struct {
	Records []record.Record
	Err     error
}

// Stop unsubscribes from the bus and stops the background goroutine.
func (s *Subscription) Stop() {
	s.once.Do(s.stop)
}

// Subscribe starts a live query over collection: it emits the first result
// synchronously, then recomputes on every subsequent create/update/delete/
// reload event touching collection, coalescing a burst within debounce into
// one recompute (spec.md §4.11). debounce of zero disables coalescing —
// every event recomputes immediately.
func Subscribe(bus *eventbus.Bus, collection string, debounce time.Duration, recompute Recompute) *Subscription {
	events, cancelSub := bus.Subscribe(collection)
	out := make(chan Result, 1)
	done := make(chan struct{})

	stop := func() {
		close(done)
		cancelSub()
	}

	last, err := recompute()
	out <- Result{Records: last, Err: err}
	go run(events, out, done, debounce, recompute, last)

	return &Subscription{Results: out, stop: stop}
}

func run(events <-chan eventbus.Event, out chan<- Result, done <-chan struct{}, debounce time.Duration, recompute Recompute, last []record.Record) {
	defer close(out)

	var timer *time.Timer
	var fire <-chan time.Time
	pending := false

	resetTimer := func() {
		if debounce <= 0 {
			pending = false
			recomputeAndEmit(&last, out, done, recompute)
			return
		}
		if timer == nil {
			timer = time.NewTimer(debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
		}
		fire = timer.C
		pending = true
	}

	for {
		select {
		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			resetTimer()
		case <-fire:
			if pending {
				pending = false
				if !recomputeAndEmit(&last, out, done, recompute) {
					return
				}
			}
		}
	}
}

func recomputeAndEmit(last *[]record.Record, out chan<- Result, done <-chan struct{}, recompute Recompute) bool {
	recs, err := recompute()
	if err != nil {
		return emit(out, done, Result{Err: err})
	}
	if record.SliceDeepEqual(*last, recs) {
		return true
	}
	*last = recs
	return emit(out, done, Result{Records: recs})
}

func emit(out chan<- Result, done <-chan struct{}, r Result) bool {
	select {
	case out <- r:
		return true
	case <-done:
		return false
	}
}
