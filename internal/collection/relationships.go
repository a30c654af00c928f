package collection

import (
	"context"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
)

// resolveRelationshipWrites pulls any relationship-named key with an
// operator-object value out of working and turns it into concrete FK or
// sibling-row mutations — spec.md §4.10's $connect/$disconnect/$create/
// $update/$set/$delete/$connectOrCreate nested-write operators. selfID
// must already be assigned on working (relationship writes need it to
// point inverse-side siblings back at this row).
func (db *Database) resolveRelationshipWrites(ctx context.Context, sc *Scope, c *Collection, working record.Record) error {
	selfID := working.ID()
	for relName, rc := range c.Cfg.Relationships {
		raw, present := working[relName]
		if !present {
			continue
		}
		opMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		delete(working, relName)

		switch rc.Kind {
		case schema.Ref:
			if err := db.applyRefOps(ctx, sc, rc, working, opMap); err != nil {
				return err
			}
		case schema.Inverse:
			if err := db.applyInverseOps(ctx, sc, rc, selfID, opMap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *Database) applyRefOps(ctx context.Context, sc *Scope, rc RelationshipConfig, working record.Record, opMap map[string]any) error {
	if v, ok := opMap["$connect"]; ok {
		id, err := refID(v)
		if err != nil {
			return err
		}
		working[rc.ForeignKey] = id
		return nil
	}
	if _, ok := opMap["$disconnect"]; ok {
		working[rc.ForeignKey] = nil
		return nil
	}
	if v, ok := opMap["$create"]; ok {
		draft, _ := v.(map[string]any)
		created, err := db.create(ctx, sc, rc.Target, record.Record(draft))
		if err != nil {
			return err
		}
		working[rc.ForeignKey] = created.ID()
		return nil
	}
	if v, ok := opMap["$connectOrCreate"]; ok {
		spec, _ := v.(map[string]any)
		where, _ := spec["where"].(map[string]any)
		rows := db.rowsFor(sc, rc.Target)
		for id, r := range rows {
			if matchesAll(r, where) {
				working[rc.ForeignKey] = id
				return nil
			}
		}
		draft, _ := spec["create"].(map[string]any)
		created, err := db.create(ctx, sc, rc.Target, record.Record(draft))
		if err != nil {
			return err
		}
		working[rc.ForeignKey] = created.ID()
		return nil
	}
	if v, ok := opMap["$update"]; ok {
		cur, _ := working[rc.ForeignKey].(string)
		if cur == "" {
			return &dberrors.OperationError{Operation: "$update", Reason: "relationship has no connected row to update"}
		}
		patch, _ := v.(map[string]any)
		_, err := db.update(ctx, sc, rc.Target, cur, patch)
		return err
	}
	if v, ok := opMap["$delete"]; ok {
		del, _ := v.(bool)
		if !del {
			return nil
		}
		cur, _ := working[rc.ForeignKey].(string)
		if cur == "" {
			return nil
		}
		if err := db.delete(ctx, sc, rc.Target, cur); err != nil {
			return err
		}
		working[rc.ForeignKey] = nil
		return nil
	}
	return nil
}

func (db *Database) applyInverseOps(ctx context.Context, sc *Scope, rc RelationshipConfig, selfID string, opMap map[string]any) error {
	if v, ok := opMap["$connect"]; ok {
		for _, id := range refIDList(v) {
			if _, err := db.update(ctx, sc, rc.Target, id, map[string]any{"$set": map[string]any{rc.ForeignKey: selfID}}); err != nil {
				return err
			}
		}
	}
	if v, ok := opMap["$disconnect"]; ok {
		for _, id := range refIDList(v) {
			if _, err := db.update(ctx, sc, rc.Target, id, map[string]any{"$set": map[string]any{rc.ForeignKey: nil}}); err != nil {
				return err
			}
		}
	}
	if v, ok := opMap["$create"]; ok {
		for _, draft := range draftList(v) {
			draft[rc.ForeignKey] = selfID
			if _, err := db.create(ctx, sc, rc.Target, record.Record(draft)); err != nil {
				return err
			}
		}
	}
	if v, ok := opMap["$set"]; ok {
		current := db.ListByFK(rc.Target, rc.ForeignKey, selfID)
		wanted := make(map[string]bool)
		for _, id := range refIDList(v) {
			wanted[id] = true
		}
		for _, r := range current {
			if !wanted[r.ID()] {
				if _, err := db.update(ctx, sc, rc.Target, r.ID(), map[string]any{"$set": map[string]any{rc.ForeignKey: nil}}); err != nil {
					return err
				}
			}
		}
		for id := range wanted {
			if _, err := db.update(ctx, sc, rc.Target, id, map[string]any{"$set": map[string]any{rc.ForeignKey: selfID}}); err != nil {
				return err
			}
		}
	}
	if v, ok := opMap["$delete"]; ok {
		for _, id := range refIDList(v) {
			if err := db.delete(ctx, sc, rc.Target, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func refID(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case map[string]any:
		if id, ok := t["id"].(string); ok {
			return id, nil
		}
	}
	return "", &dberrors.OperationError{Operation: "$connect", Reason: "expected an id or {id}"}
}

func refIDList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if id, err := refID(item); err == nil {
				out = append(out, id)
			}
		}
		return out
	default:
		if id, err := refID(v); err == nil {
			return []string{id}
		}
	}
	return nil
}

func draftList(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{t}
	}
	return nil
}

// CascadeRef names one dependent row affected by a cascading delete.
type CascadeRef struct {
	Collection string
	ID         string
}

// CascadeReport is returned by DeleteWithRelationships, listing every
// dependent row that was deleted (cascade) or had its foreign key cleared
// (setNull) as a side effect of deleting the target row (spec.md §8
// scenario 4).
type CascadeReport struct {
	Deleted []CascadeRef
	Nulled  []CascadeRef
}

// applyDeleteRules enforces every other collection's ref-relationship
// delete rule against the row about to be deleted (spec.md §4.10): cascade
// deletes dependents, setNull clears their FK, restrict aborts the delete
// if any dependent still exists. It reports every dependent row it touched.
func (db *Database) applyDeleteRules(ctx context.Context, sc *Scope, name, id string) (CascadeReport, error) {
	var report CascadeReport
	for depName, dep := range db.collections {
		for _, rc := range dep.Cfg.Relationships {
			if rc.Kind != schema.Ref || rc.Target != name {
				continue
			}
			dependents := db.ListByFK(depName, rc.ForeignKey, id)
			if len(dependents) == 0 {
				continue
			}
			switch rc.OnDelete {
			case Restrict:
				return CascadeReport{}, &dberrors.OperationError{
					Operation: "delete",
					Reason:    name + " has dependent rows in " + depName + " (restrict)",
				}
			case SetNull:
				for _, r := range dependents {
					if _, err := db.update(ctx, sc, depName, r.ID(), map[string]any{"$set": map[string]any{rc.ForeignKey: nil}}); err != nil {
						return CascadeReport{}, err
					}
					report.Nulled = append(report.Nulled, CascadeRef{Collection: depName, ID: r.ID()})
				}
			case Cascade:
				for _, r := range dependents {
					if err := db.delete(ctx, sc, depName, r.ID()); err != nil {
						return CascadeReport{}, err
					}
					report.Deleted = append(report.Deleted, CascadeRef{Collection: depName, ID: r.ID()})
				}
			}
		}
	}
	return report, nil
}
