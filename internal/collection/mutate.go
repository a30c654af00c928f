package collection

import (
	"context"
	"time"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
)

// Create runs the full DRAFT -> validate -> FK-check -> unique-check ->
// before-hook -> commit -> after-hook state machine of spec.md §4.9 for a
// new row, against live state.
func (db *Database) Create(ctx context.Context, collection string, draft record.Record) (record.Record, error) {
	db.writerLock.Lock()
	defer db.writerLock.Unlock()
	return db.create(ctx, nil, collection, draft)
}

func (db *Database) create(ctx context.Context, sc *Scope, name string, draft record.Record) (record.Record, error) {
	c, ok := db.collections[name]
	if !ok {
		return nil, &dberrors.OperationError{Operation: "create", Reason: "unknown collection " + name}
	}

	working := draft.Clone()
	if id, _ := working["id"].(string); id == "" {
		working["id"] = db.idgen.Get(c.Cfg.idGeneratorName()).Generate(name, working)
	}
	now := db.clock().UTC().Format(time.RFC3339Nano)
	if _, has := working["createdAt"]; !has {
		working["createdAt"] = now
	}
	working["updatedAt"] = now

	// Inverse-side nested writes point sibling rows back at this row, so
	// they run only once this row is committed.
	deferred := record.Record{"id": working["id"]}
	for relName, rc := range c.Cfg.Relationships {
		if v, ok := working[relName].(map[string]any); ok && rc.Kind == schema.Inverse {
			deferred[relName] = v
			delete(working, relName)
		}
	}

	if err := db.resolveRelationshipWrites(ctx, sc, c, working); err != nil {
		return nil, err
	}

	validated, issues, err := runValidator(c.Cfg.Validator, working)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, &dberrors.ValidationError{Issues: issues}
	}
	working = validated

	rows := db.rowsFor(sc, name)
	id := working.ID()
	if _, exists := rows[id]; exists {
		return nil, &dberrors.DuplicateKeyError{Collection: name, Field: "id", Value: id, ExistingID: id}
	}

	if err := db.checkForeignKeys(sc, c, working); err != nil {
		return nil, err
	}
	if err := db.checkUnique(sc, c, name, working, ""); err != nil {
		return nil, err
	}

	if c.Cfg.Hooks.BeforeCreate != nil {
		if err := c.Cfg.Hooks.BeforeCreate(ctx, HookEvent{Collection: name, Kind: "create", Draft: working}); err != nil {
			return nil, &dberrors.HookError{Phase: "beforeCreate", Cause: err}
		}
	}

	newRows := cloneRows(rows)
	newRows[id] = working
	db.commit(sc, name, newRows, nil, working)
	db.publish(sc, eventbus.Event{Collection: name, Kind: eventbus.Create, ID: id, After: working})

	if len(deferred) > 1 {
		if err := db.resolveRelationshipWrites(ctx, sc, c, deferred); err != nil {
			return working, err
		}
	}

	if c.Cfg.Hooks.AfterCreate != nil {
		if err := c.Cfg.Hooks.AfterCreate(ctx, HookEvent{Collection: name, Kind: "create", After: working}); err != nil {
			return working, &dberrors.HookError{Phase: "afterCreate", Cause: err}
		}
	}
	return working, nil
}

// Update applies an operator-or-literal patch to one row by id, against
// live state.
func (db *Database) Update(ctx context.Context, collection, id string, patch map[string]any) (record.Record, error) {
	db.writerLock.Lock()
	defer db.writerLock.Unlock()
	return db.update(ctx, nil, collection, id, patch)
}

func (db *Database) update(ctx context.Context, sc *Scope, name, id string, patch map[string]any) (record.Record, error) {
	c, ok := db.collections[name]
	if !ok {
		return nil, &dberrors.OperationError{Operation: "update", Reason: "unknown collection " + name}
	}
	if c.Cfg.AppendOnly {
		return nil, &dberrors.OperationError{Operation: "update", Reason: name + " is append-only"}
	}

	rows := db.rowsFor(sc, name)
	before, exists := rows[id]
	if !exists {
		return nil, &dberrors.NotFoundError{Collection: name, ID: id}
	}

	working := before.Clone()
	ApplyPatch(working, patch)

	var immutable []dberrors.Issue
	if newID, ok := working["id"]; ok && !record.DeepEqual(newID, id) {
		immutable = append(immutable, dberrors.Issue{Field: "id", Message: "id is immutable and cannot be changed by update"})
	}
	if newCreatedAt, ok := working["createdAt"]; ok && !record.DeepEqual(newCreatedAt, before["createdAt"]) {
		immutable = append(immutable, dberrors.Issue{Field: "createdAt", Message: "createdAt is immutable and cannot be changed by update"})
	}
	if len(immutable) > 0 {
		return nil, &dberrors.ValidationError{Issues: immutable}
	}

	working["id"] = id
	working["updatedAt"] = db.clock().UTC().Format(time.RFC3339Nano)

	if err := db.resolveRelationshipWrites(ctx, sc, c, working); err != nil {
		return nil, err
	}

	validated, issues, err := runValidator(c.Cfg.Validator, working)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return nil, &dberrors.ValidationError{Issues: issues}
	}
	working = validated

	if err := db.checkForeignKeys(sc, c, working); err != nil {
		return nil, err
	}
	if err := db.checkUnique(sc, c, name, working, id); err != nil {
		return nil, err
	}

	if c.Cfg.Hooks.BeforeUpdate != nil {
		if err := c.Cfg.Hooks.BeforeUpdate(ctx, HookEvent{Collection: name, Kind: "update", Draft: working, Before: before}); err != nil {
			return nil, &dberrors.HookError{Phase: "beforeUpdate", Cause: err}
		}
	}

	newRows := cloneRows(rows)
	newRows[id] = working
	db.commit(sc, name, newRows, before, working)
	db.publish(sc, eventbus.Event{Collection: name, Kind: eventbus.Update, ID: id, Before: before, After: working})

	if c.Cfg.Hooks.AfterUpdate != nil {
		if err := c.Cfg.Hooks.AfterUpdate(ctx, HookEvent{Collection: name, Kind: "update", Before: before, After: working}); err != nil {
			return working, &dberrors.HookError{Phase: "afterUpdate", Cause: err}
		}
	}
	return working, nil
}

// Delete removes one row by id. By default this leaves any foreign key
// pointing at it dangling (spec.md §4.10 Open Question (a): plain delete
// orphans rather than enforcing a relationship rule) — use
// DeleteWithRelationships to cascade, restrict, or null out dependents.
func (db *Database) Delete(ctx context.Context, collection, id string) error {
	db.writerLock.Lock()
	defer db.writerLock.Unlock()
	return db.delete(ctx, nil, collection, id)
}

// DeleteWithRelationships removes one row by id, applying the configured
// delete rule (spec.md §4.10: restrict/cascade/setNull) to every collection
// with a ref relationship pointing at it, and reports every dependent row
// it deleted or nulled out (spec.md §8 scenario 4: "a cascaded report lists
// their ids").
func (db *Database) DeleteWithRelationships(ctx context.Context, collection, id string) (CascadeReport, error) {
	db.writerLock.Lock()
	defer db.writerLock.Unlock()
	return db.deleteWithRelationships(ctx, nil, collection, id)
}

func (db *Database) deleteWithRelationships(ctx context.Context, sc *Scope, name, id string) (CascadeReport, error) {
	c, ok := db.collections[name]
	if !ok {
		return CascadeReport{}, &dberrors.OperationError{Operation: "delete", Reason: "unknown collection " + name}
	}
	rows := db.rowsFor(sc, name)
	if _, exists := rows[id]; !exists {
		return CascadeReport{}, &dberrors.NotFoundError{Collection: name, ID: id}
	}

	var report CascadeReport
	if c.Cfg.SoftDeleteField == "" {
		r, err := db.applyDeleteRules(ctx, sc, name, id)
		if err != nil {
			return CascadeReport{}, err
		}
		report = r
	}
	if err := db.delete(ctx, sc, name, id); err != nil {
		return CascadeReport{}, err
	}
	return report, nil
}

func (db *Database) delete(ctx context.Context, sc *Scope, name, id string) error {
	c, ok := db.collections[name]
	if !ok {
		return &dberrors.OperationError{Operation: "delete", Reason: "unknown collection " + name}
	}
	if c.Cfg.AppendOnly {
		return &dberrors.OperationError{Operation: "delete", Reason: name + " is append-only"}
	}

	rows := db.rowsFor(sc, name)
	before, exists := rows[id]
	if !exists {
		return &dberrors.NotFoundError{Collection: name, ID: id}
	}

	if c.Cfg.SoftDeleteField != "" {
		_, err := db.update(ctx, sc, name, id, map[string]any{"$set": map[string]any{c.Cfg.SoftDeleteField: db.clock().UTC().Format(time.RFC3339Nano)}})
		return err
	}

	if c.Cfg.Hooks.BeforeDelete != nil {
		if err := c.Cfg.Hooks.BeforeDelete(ctx, HookEvent{Collection: name, Kind: "delete", Before: before}); err != nil {
			return &dberrors.HookError{Phase: "beforeDelete", Cause: err}
		}
	}

	newRows := cloneRows(rows)
	delete(newRows, id)
	db.commit(sc, name, newRows, before, nil)
	db.publish(sc, eventbus.Event{Collection: name, Kind: eventbus.Delete, ID: id, Before: before})

	if c.Cfg.Hooks.AfterDelete != nil {
		if err := c.Cfg.Hooks.AfterDelete(ctx, HookEvent{Collection: name, Kind: "delete", Before: before}); err != nil {
			return &dberrors.HookError{Phase: "afterDelete", Cause: err}
		}
	}
	return nil
}

// Upsert updates the first row whose fields equal every entry of match
// (with draft applied as a $set), or creates a row from draft merged with
// match when no row matches.
func (db *Database) Upsert(ctx context.Context, collection string, match map[string]any, draft record.Record) (record.Record, error) {
	db.writerLock.Lock()
	defer db.writerLock.Unlock()
	return db.upsert(ctx, nil, collection, match, draft)
}

func (db *Database) upsert(ctx context.Context, sc *Scope, name string, match map[string]any, draft record.Record) (record.Record, error) {
	rows := db.rowsFor(sc, name)
	for id, r := range rows {
		if matchesAll(r, match) {
			return db.update(ctx, sc, name, id, map[string]any{"$set": map[string]any(draft)})
		}
	}
	merged := draft.Clone()
	for k, v := range match {
		if _, has := merged[k]; !has {
			merged[k] = v
		}
	}
	return db.create(ctx, sc, name, merged)
}

func matchesAll(r record.Record, match map[string]any) bool {
	for k, v := range match {
		cur, ok := record.Get(r, k)
		if !ok || !looseEqualValue(cur, v) {
			return false
		}
	}
	return true
}

func cloneRows(rows map[string]record.Record) map[string]record.Record {
	out := make(map[string]record.Record, len(rows)+1)
	for k, v := range rows {
		out[k] = v
	}
	return out
}

func runValidator(v interface {
	Validate(record.Record) (record.Record, []dberrors.Issue, error)
}, draft record.Record) (record.Record, []dberrors.Issue, error) {
	if v == nil {
		return draft, nil, nil
	}
	return v.Validate(draft)
}
