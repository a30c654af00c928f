package collection

import (
	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
)

// checkForeignKeys verifies every ref relationship's foreign key, if
// present and non-nil, resolves to an existing row in its target
// collection (spec.md §4.9 "FK-check").
func (db *Database) checkForeignKeys(sc *Scope, c *Collection, working record.Record) error {
	for _, rc := range c.Cfg.Relationships {
		if rc.Kind != schema.Ref {
			continue
		}
		v, ok := working[rc.ForeignKey]
		if !ok || v == nil {
			continue
		}
		fk, ok := v.(string)
		if !ok {
			continue
		}
		rows := db.rowsFor(sc, rc.Target)
		if _, found := rows[fk]; !found {
			return &dberrors.ForeignKeyError{
				Collection:       c.Name,
				Field:            rc.ForeignKey,
				Value:            fk,
				TargetCollection: rc.Target,
			}
		}
	}
	return nil
}

// checkUnique enforces every declared unique constraint over active rows
// only, excluding the row being updated (selfID) and any soft-deleted row
// from the collision check (spec.md §3 invariant 2: uniqueness holds over
// active, i.e. not soft-deleted, rows).
func (db *Database) checkUnique(sc *Scope, c *Collection, name string, working record.Record, selfID string) error {
	if len(c.Cfg.Unique) == 0 {
		return nil
	}
	rows := db.rowsFor(sc, name)
	for _, uc := range c.Cfg.Unique {
		values := make([]any, len(uc.Fields))
		complete := true
		for i, f := range uc.Fields {
			v, ok := record.Get(working, f)
			values[i] = v
			if !ok || v == nil {
				complete = false
			}
		}
		if !complete {
			continue // a constraint with any missing field never collides
		}
		for id, r := range rows {
			if id == selfID {
				continue
			}
			if c.Cfg.SoftDeleteField != "" && r[c.Cfg.SoftDeleteField] != nil {
				continue
			}
			if uniqueMatches(r, uc.Fields, values) {
				return &dberrors.UniqueConstraintError{
					Collection: name,
					Constraint: uc.Name,
					Fields:     uc.Fields,
					Values:     values,
					ExistingID: id,
				}
			}
		}
	}
	return nil
}

func uniqueMatches(r record.Record, fields []string, values []any) bool {
	for i, f := range fields {
		v, ok := record.Get(r, f)
		if !ok || !looseEqualValue(v, values[i]) {
			return false
		}
	}
	return true
}
