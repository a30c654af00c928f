// Package txn is the transaction coordinator of spec.md §4.10: a single
// in-flight transaction at a time, given a shadow snapshot of whichever
// collections it touches, with events and persistence scheduling deferred
// until a successful commit. Grounded on the teacher's internal/lockfile
// package (lock_unix.go / lock_windows.go), which wraps a single
// process-wide advisory lock with the same acquire-or-reject-immediately
// contract this coordinator uses for re-entrance.
package txn

import (
	"context"

	"github.com/steveyegge/proseql/internal/collection"
	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/watch"
)

// Handle is the transaction-scoped view a transaction body mutates
// through; every call routes to the same mutation kernel the top-level
// Database uses, parameterized by the transaction's shadow scope.
type Handle struct {
	db *collection.Database
	sc *collection.Scope
}

func (h *Handle) Create(ctx context.Context, coll string, draft record.Record) (record.Record, error) {
	return h.db.CreateScoped(ctx, h.sc, coll, draft)
}

func (h *Handle) Update(ctx context.Context, coll, id string, patch map[string]any) (record.Record, error) {
	return h.db.UpdateScoped(ctx, h.sc, coll, id, patch)
}

func (h *Handle) Delete(ctx context.Context, coll, id string) error {
	return h.db.DeleteScoped(ctx, h.sc, coll, id)
}

// DeleteWithRelationships is the transaction-scoped counterpart of
// Database.DeleteWithRelationships: it applies every dependent
// collection's OnDelete rule against the shadow scope and reports the
// rows it touched, deferred like every other write until commit.
func (h *Handle) DeleteWithRelationships(ctx context.Context, coll, id string) (collection.CascadeReport, error) {
	return h.db.DeleteWithRelationshipsScoped(ctx, h.sc, coll, id)
}

func (h *Handle) Upsert(ctx context.Context, coll string, match map[string]any, draft record.Record) (record.Record, error) {
	return h.db.UpsertScoped(ctx, h.sc, coll, match, draft)
}

// GetByID and ListByFK let a transaction body read its own in-flight
// writes, falling through to live state for untouched collections.
func (h *Handle) GetByID(coll, id string) (record.Record, bool) {
	rows, ok := h.sc.Rows(coll)
	if ok {
		r, found := rows[id]
		return r, found
	}
	return h.db.GetByID(coll, id)
}

func (h *Handle) ListByFK(coll, field string, value any) []record.Record {
	rows, ok := h.sc.Rows(coll)
	if !ok {
		return h.db.ListByFK(coll, field, value)
	}
	var out []record.Record
	for _, r := range rows {
		if v, present := record.Get(r, field); present && v == value {
			out = append(out, r)
		}
	}
	return out
}

// Watch and WatchByID fail deterministically inside a transaction body:
// reactive subscriptions only ever observe committed state, and a
// transaction's own events aren't published until commit, so there is
// nothing yet to subscribe to (spec.md §4.10, "reactive watchers are
// suppressed inside transactions").
func (h *Handle) Watch(collection string, req any) (*watch.Subscription, error) {
	return nil, &dberrors.TransactionError{Operation: "watch", Reason: "watch unavailable inside transaction"}
}

func (h *Handle) WatchByID(collection, id string) (*watch.Subscription, error) {
	return nil, &dberrors.TransactionError{Operation: "watch", Reason: "watch unavailable inside transaction"}
}

// Run executes fn as a single transaction: a non-blocking compare-and-set
// rejects re-entrant $transaction calls immediately with
// already-in-transaction (mirroring the teacher's lockfile's
// try-lock-or-fail contract); once acquired, the coordinator additionally
// holds the database's single-writer lock for the whole body so no
// non-transactional mutation can interleave with (and be clobbered by) the
// transaction's eventual commit swap.
//
// On success every collection the body touched is committed, its buffered
// events are replayed onto the bus in commit order, and persistence is
// scheduled once per dirtied collection. On error (returned by fn, or any
// mutation call within it), nothing commits: the shadow scope is simply
// discarded and live state is left untouched.
func Run(ctx context.Context, db *collection.Database, fn func(ctx context.Context, h *Handle) error) error {
	if !db.TxActive().CompareAndSwap(false, true) {
		return &dberrors.TransactionError{Operation: "transaction", Reason: "already-in-transaction"}
	}
	defer db.TxActive().Store(false)

	db.WriterLock().Lock()
	defer db.WriterLock().Unlock()

	sc := collection.NewScope()
	h := &Handle{db: db, sc: sc}

	if err := fn(ctx, h); err != nil {
		return err
	}

	db.CommitScope(sc)
	return nil
}
