package collection

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/dblog"
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/idgen"
	"github.com/steveyegge/proseql/internal/index"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
)

// snapshot is one collection's immutable-by-replacement state: the row
// mapping plus its derived indexes, always swapped together so a reader
// that captures a *snapshot never observes rows and indexes out of sync.
type snapshot struct {
	rows   map[string]record.Record
	eq     *index.Equality
	search *index.Search
}

// Collection holds one collection's config and live state.
type Collection struct {
	Name  string
	Cfg   Config
	state atomic.Pointer[snapshot]
}

// Snapshot returns the collection's current, immutable state. Callers
// (the query orchestrator) should load once per pipeline run and operate
// on the result instead of re-reading mid-pipeline (spec.md §4.8).
func (c *Collection) Snapshot() (rows map[string]record.Record, eq *index.Equality, search *index.Search) {
	s := c.state.Load()
	return s.rows, s.eq, s.search
}

// Database is the top-level in-memory store: every configured collection
// plus the collaborators the mutation kernel and query pipeline share.
// Modeled structurally on the teacher's storage.Backend implementations,
// which likewise bundle one coarse writer lock around an in-process map.
type Database struct {
	collections map[string]*Collection
	order       []string // declaration order, for deterministic iteration

	idgen  *idgen.Registry
	bus    *eventbus.Bus
	logger dblog.Logger
	clock  func() time.Time

	writerLock sync.Mutex
	txActive   atomic.Bool

	persistHook func(collection string)
}

// SetPersistHook wires the debounced persistence trigger (internal/persist)
// in after construction, to avoid a collection<->persist import cycle: the
// persist package depends on collection's exported types, so the hook is
// supplied as a callback instead.
func (db *Database) SetPersistHook(hook func(collection string)) {
	db.persistHook = hook
}

func (db *Database) schedulePersist(collection string) {
	if db.persistHook != nil {
		db.persistHook(collection)
	}
}

// WriterLock exposes the single-writer mutex to the transaction
// coordinator, which must hold it for a whole transaction body.
func (db *Database) WriterLock() *sync.Mutex { return &db.writerLock }

// TxActive exposes the non-blocking reentrance guard to the transaction
// coordinator.
func (db *Database) TxActive() *atomic.Bool { return &db.txActive }

// Clock returns the injectable clock used for timestamps.
func (db *Database) Clock() func() time.Time { return db.clock }

// Logger returns the database's configured logger.
func (db *Database) Logger() dblog.Logger { return db.logger }

// IDGen returns the id-generator registry.
func (db *Database) IDGen() *idgen.Registry { return db.idgen }

// New builds a Database from a name-ordered set of collection configs and
// their initial rows (e.g. loaded from storage, or empty on a fresh
// database). Index and relationship wiring happen once, here.
func New(configs []NamedConfig, initialRows map[string][]record.Record, idgens *idgen.Registry, bus *eventbus.Bus, logger dblog.Logger, clock func() time.Time) (*Database, error) {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = dblog.Nop{}
	}
	db := &Database{
		collections: make(map[string]*Collection, len(configs)),
		idgen:       idgens,
		bus:         bus,
		logger:      logger,
		clock:       clock,
	}
	for _, nc := range configs {
		recs := initialRows[nc.Name]
		eq := index.BuildEquality(recs, nc.Config.IndexPaths)
		search := index.BuildSearch(recs, nc.Config.SearchPaths)
		rows := make(map[string]record.Record, len(recs))
		for _, r := range recs {
			rows[r.ID()] = r
		}
		c := &Collection{Name: nc.Name, Cfg: nc.Config}
		c.state.Store(&snapshot{rows: rows, eq: eq, search: search})
		db.collections[nc.Name] = c
		db.order = append(db.order, nc.Name)
	}
	for _, nc := range configs {
		for relName, rc := range nc.Config.Relationships {
			if _, ok := db.collections[rc.Target]; !ok {
				return nil, &dberrors.ValidationError{Message: "collection " + nc.Name + ": relationship " + relName + " targets unknown collection " + rc.Target}
			}
		}
	}
	return db, nil
}

// NamedConfig pairs a collection name with its config, for New.
type NamedConfig struct {
	Name   string
	Config Config
}

// Collection returns the named collection, or (nil, false) if undeclared.
func (db *Database) Collection(name string) (*Collection, bool) {
	c, ok := db.collections[name]
	return c, ok
}

// Names returns every declared collection name, in declaration order.
func (db *Database) Names() []string {
	return append([]string(nil), db.order...)
}

// Bus exposes the change-event broadcaster for reactive watchers.
func (db *Database) Bus() *eventbus.Bus { return db.bus }

// --- schema.Accessor -------------------------------------------------

func (db *Database) GetByID(collection, id string) (record.Record, bool) {
	c, ok := db.collections[collection]
	if !ok {
		return nil, false
	}
	rows, _, _ := c.Snapshot()
	r, ok := rows[id]
	return r, ok
}

func (db *Database) ListByFK(collection, field string, value any) []record.Record {
	c, ok := db.collections[collection]
	if !ok {
		return nil
	}
	rows, eq, _ := c.Snapshot()
	if eq != nil && eq.Has(field) {
		ids := eq.Lookup(field, value)
		out := make([]record.Record, 0, len(ids))
		for id := range ids {
			if r, ok := rows[id]; ok {
				out = append(out, r)
			}
		}
		return out
	}
	var out []record.Record
	for _, r := range rows {
		if v, ok := record.Get(r, field); ok && looseEqualValue(v, value) {
			out = append(out, r)
		}
	}
	return out
}

func (db *Database) Relationships(collection string) map[string]schema.Relationship {
	c, ok := db.collections[collection]
	if !ok {
		return nil
	}
	return c.Cfg.schemaRelationships()
}

func looseEqualValue(a, b any) bool {
	if record.DeepEqual(a, b) {
		return true
	}
	af, aok := record.IsNumeric(a)
	bf, bok := record.IsNumeric(b)
	return aok && bok && af == bf
}
