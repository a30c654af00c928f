package collection

import (
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/index"
	"github.com/steveyegge/proseql/internal/record"
)

// Scope routes a mutation's reads and writes to either live collection
// state (nil Scope) or a transaction's shadow set (non-nil), so the
// mutation kernel in mutate.go has exactly one code path for both. A
// transaction lazily imports a collection's mapping into the shadow on
// first touch, and lazily clones its indexes alongside it — spec.md
// §4.10 only requires the row mappings to be shallow-copied eagerly;
// indexes are cloned on demand since not every transaction mutates every
// collection.
type Scope struct {
	shadow       map[string]map[string]record.Record
	eqClones     map[string]*index.Equality
	searchClones map[string]*index.Search
	dirty        map[string]bool
	events       []eventbus.Event
}

// NewScope returns an empty transaction scope.
func NewScope() *Scope {
	return &Scope{
		shadow:       make(map[string]map[string]record.Record),
		eqClones:     make(map[string]*index.Equality),
		searchClones: make(map[string]*index.Search),
		dirty:        make(map[string]bool),
	}
}

// Events returns every event buffered during the scope's lifetime, in
// commit order, for replay onto the bus after a successful commit.
func (sc *Scope) Events() []eventbus.Event { return sc.events }

// Dirty reports which collections the scope actually wrote to.
func (sc *Scope) Dirty() map[string]bool { return sc.dirty }

// Rows returns the scope's current shadow mapping for collection, if any
// mutation has touched it yet.
func (sc *Scope) Rows(collection string) (map[string]record.Record, bool) {
	r, ok := sc.shadow[collection]
	return r, ok
}

func (db *Database) rowsFor(sc *Scope, name string) map[string]record.Record {
	if sc != nil {
		if r, ok := sc.shadow[name]; ok {
			return r
		}
	}
	c := db.collections[name]
	rows, _, _ := c.Snapshot()
	if sc == nil {
		return rows
	}
	cp := make(map[string]record.Record, len(rows))
	for k, v := range rows {
		cp[k] = v
	}
	sc.shadow[name] = cp
	return cp
}

func (db *Database) indexesFor(sc *Scope, name string) (*index.Equality, *index.Search) {
	c := db.collections[name]
	if sc == nil {
		_, eq, search := c.Snapshot()
		return eq, search
	}
	if eq, ok := sc.eqClones[name]; ok {
		return eq, sc.searchClones[name]
	}
	rows := db.rowsFor(sc, name)
	recs := make([]record.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r)
	}
	_, liveEq, liveSearch := c.Snapshot()
	eqClone := index.BuildEquality(recs, liveEq.Paths())
	searchClone := index.BuildSearch(recs, liveSearch.Paths())
	sc.eqClones[name] = eqClone
	sc.searchClones[name] = searchClone
	return eqClone, searchClone
}

// commit writes newRows back (to live state + persistence scheduling, or
// into the shadow set) and reconciles indexes for the one changed row.
func (db *Database) commit(sc *Scope, name string, newRows map[string]record.Record, oldRow, newRow record.Record) {
	eq, search := db.indexesFor(sc, name)
	eq.Apply(oldRow, newRow)
	search.Apply(oldRow, newRow)

	if sc != nil {
		sc.shadow[name] = newRows
		sc.dirty[name] = true
		return
	}
	c := db.collections[name]
	c.state.Store(&snapshot{rows: newRows, eq: eq, search: search})
	db.schedulePersist(name)
}

func (db *Database) publish(sc *Scope, evt eventbus.Event) {
	if sc != nil {
		sc.events = append(sc.events, evt)
		return
	}
	db.bus.Publish(evt)
}
