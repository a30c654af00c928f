package watch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithTimeout(t *testing.T, results <-chan watch.Result) watch.Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a watch result")
		return watch.Result{}
	}
}

func assertNoResult(t *testing.T, results <-chan watch.Result) {
	t.Helper()
	select {
	case r, ok := <-results:
		t.Fatalf("expected no result, got %+v (open=%v)", r, ok)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeEmitsFirstResultSynchronously(t *testing.T) {
	bus := eventbus.New()
	recompute := func() ([]record.Record, error) {
		return []record.Record{{"id": "1"}}, nil
	}
	sub := watch.Subscribe(bus, "notes", 0, recompute)
	defer sub.Stop()

	r := recvWithTimeout(t, sub.Results)
	require.NoError(t, r.Err)
	assert.Len(t, r.Records, 1)
}

func TestSubscribeRecomputesOnMatchingEvent(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	count := 0
	recompute := func() ([]record.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		count++
		return []record.Record{{"id": "1", "n": float64(count)}}, nil
	}
	sub := watch.Subscribe(bus, "notes", 0, recompute)
	defer sub.Stop()

	first := recvWithTimeout(t, sub.Results)
	assert.Equal(t, float64(1), first.Records[0]["n"])

	bus.Publish(eventbus.Event{Collection: "notes", Kind: eventbus.Update, ID: "1"})

	second := recvWithTimeout(t, sub.Results)
	assert.Equal(t, float64(2), second.Records[0]["n"])
}

func TestSubscribeDedupsIdenticalResults(t *testing.T) {
	bus := eventbus.New()
	recompute := func() ([]record.Record, error) {
		return []record.Record{{"id": "1", "n": 1.0}}, nil
	}
	sub := watch.Subscribe(bus, "notes", 0, recompute)
	defer sub.Stop()

	recvWithTimeout(t, sub.Results)

	bus.Publish(eventbus.Event{Collection: "notes", Kind: eventbus.Update, ID: "1"})
	assertNoResult(t, sub.Results)
}

func TestSubscribeIgnoresOtherCollections(t *testing.T) {
	bus := eventbus.New()
	recompute := func() ([]record.Record, error) {
		return []record.Record{{"id": "1"}}, nil
	}
	sub := watch.Subscribe(bus, "notes", 0, recompute)
	defer sub.Stop()

	recvWithTimeout(t, sub.Results)
	bus.Publish(eventbus.Event{Collection: "tags", Kind: eventbus.Create, ID: "x"})
	assertNoResult(t, sub.Results)
}

func TestSubscribeStopClosesResultsChannel(t *testing.T) {
	bus := eventbus.New()
	recompute := func() ([]record.Record, error) { return nil, nil }
	sub := watch.Subscribe(bus, "notes", 0, recompute)

	recvWithTimeout(t, sub.Results)
	sub.Stop()
	sub.Stop() // must be safe to call twice

	_, ok := <-sub.Results
	assert.False(t, ok)
}

func TestSubscribeByIDEmitsEntityOnMatchingEvent(t *testing.T) {
	bus := eventbus.New()
	store := map[string]record.Record{"1": {"id": "1", "title": "first"}}
	get := func(id string) (record.Record, bool) {
		r, ok := store[id]
		return r, ok
	}
	sub := watch.SubscribeByID(bus, "notes", "1", get)
	defer sub.Stop()

	first := recvWithTimeout(t, sub.Results)
	require.Len(t, first.Records, 1)
	assert.Equal(t, "first", first.Records[0]["title"])

	store["1"] = record.Record{"id": "1", "title": "updated"}
	bus.Publish(eventbus.Event{Collection: "notes", Kind: eventbus.Update, ID: "1"})

	second := recvWithTimeout(t, sub.Results)
	require.Len(t, second.Records, 1)
	assert.Equal(t, "updated", second.Records[0]["title"])
}

func TestSubscribeByIDIgnoresUnrelatedID(t *testing.T) {
	bus := eventbus.New()
	store := map[string]record.Record{"1": {"id": "1", "title": "first"}}
	get := func(id string) (record.Record, bool) {
		r, ok := store[id]
		return r, ok
	}
	sub := watch.SubscribeByID(bus, "notes", "1", get)
	defer sub.Stop()

	recvWithTimeout(t, sub.Results)
	bus.Publish(eventbus.Event{Collection: "notes", Kind: eventbus.Update, ID: "2"})
	assertNoResult(t, sub.Results)
}

func TestSubscribeDebounceCoalescesBurst(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	count := 0
	recompute := func() ([]record.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		count++
		return []record.Record{{"id": "1", "n": float64(count)}}, nil
	}
	sub := watch.Subscribe(bus, "notes", 50*time.Millisecond, recompute)
	defer sub.Stop()

	recvWithTimeout(t, sub.Results)

	for i := 0; i < 5; i++ {
		bus.Publish(eventbus.Event{Collection: "notes", Kind: eventbus.Update, ID: "1"})
	}

	recvWithTimeout(t, sub.Results)
	assertNoResult(t, sub.Results)
}
