package collection

import (
	"context"

	"github.com/steveyegge/proseql/internal/record"
)

// The Scoped* methods are the transaction coordinator's entry points into
// the mutation kernel: identical to Create/Update/Delete/Upsert but
// against a caller-supplied Scope instead of live state, and without
// taking the writer lock (the coordinator already holds it for the whole
// transaction body).

func (db *Database) CreateScoped(ctx context.Context, sc *Scope, collection string, draft record.Record) (record.Record, error) {
	return db.create(ctx, sc, collection, draft)
}

func (db *Database) UpdateScoped(ctx context.Context, sc *Scope, collection, id string, patch map[string]any) (record.Record, error) {
	return db.update(ctx, sc, collection, id, patch)
}

func (db *Database) DeleteScoped(ctx context.Context, sc *Scope, collection, id string) error {
	return db.delete(ctx, sc, collection, id)
}

func (db *Database) DeleteWithRelationshipsScoped(ctx context.Context, sc *Scope, collection, id string) (CascadeReport, error) {
	return db.deleteWithRelationships(ctx, sc, collection, id)
}

func (db *Database) UpsertScoped(ctx context.Context, sc *Scope, collection string, match map[string]any, draft record.Record) (record.Record, error) {
	return db.upsert(ctx, sc, collection, match, draft)
}

// CommitScope promotes every collection a transaction scope touched into
// live state and replays its buffered events, in commit order, onto the
// bus — spec.md §4.10's "deferred event publication... on commit only".
// Persistence is scheduled once per dirtied collection, after the swap.
func (db *Database) CommitScope(sc *Scope) {
	for name := range sc.Dirty() {
		rows, ok := sc.Rows(name)
		if !ok {
			continue
		}
		c := db.collections[name]
		eq := sc.eqClones[name]
		search := sc.searchClones[name]
		if eq == nil || search == nil {
			_, eq, search = c.Snapshot()
		}
		c.state.Store(&snapshot{rows: rows, eq: eq, search: search})
		db.schedulePersist(name)
	}
	for _, evt := range sc.Events() {
		db.bus.Publish(evt)
	}
}
