// Package populate resolves ref and inverse relationships into nested
// entities in a query's output (spec.md §4.4). The populate config is a
// finite tree, so data-graph cycles are only ever traversed to the
// declared nesting depth — no runtime cycle detection is required.
package populate

import (
	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
)

// Spec is a populate tree: each key is an edge name, mapping to either
// true (populate, no further nesting) or a nested Spec (populate and keep
// resolving from there).
type Spec map[string]any

// Populate mutates rec in place, attaching each requested edge.
func Populate(rec record.Record, collection string, acc schema.Accessor, spec Spec) error {
	if len(spec) == 0 {
		return nil
	}
	rels := acc.Relationships(collection)
	for edge, sub := range spec {
		rel, ok := rels[edge]
		if !ok {
			continue
		}
		switch rel.Kind {
		case schema.Ref:
			if err := populateRef(rec, rel, acc, nestedSpec(sub)); err != nil {
				return err
			}
		case schema.Inverse:
			if err := populateInverse(rec, rel, acc, nestedSpec(sub)); err != nil {
				return err
			}
		}
	}
	return nil
}

func nestedSpec(v any) Spec {
	switch t := v.(type) {
	case Spec:
		return t
	case map[string]any:
		return Spec(t)
	default:
		return nil
	}
}

func populateRef(rec record.Record, rel schema.Relationship, acc schema.Accessor, nested Spec) error {
	fkVal, ok := rec[rel.ForeignKey]
	if !ok || fkVal == nil {
		rec[rel.Name] = nil
		return nil
	}
	fkID, ok := fkVal.(string)
	if !ok {
		rec[rel.Name] = nil
		return nil
	}
	target, found := acc.GetByID(rel.Target, fkID)
	if !found {
		return &dberrors.DanglingReferenceError{
			Collection: rel.Target,
			Field:      rel.ForeignKey,
			TargetID:   fkID,
		}
	}
	clone := target.Clone()
	if len(nested) > 0 {
		if err := Populate(clone, rel.Target, acc, nested); err != nil {
			return err
		}
	}
	rec[rel.Name] = clone
	return nil
}

func populateInverse(rec record.Record, rel schema.Relationship, acc schema.Accessor, nested Spec) error {
	siblings := acc.ListByFK(rel.Target, rel.ForeignKey, rec.ID())
	out := make([]any, len(siblings))
	for i, s := range siblings {
		clone := s.Clone()
		if len(nested) > 0 {
			if err := Populate(clone, rel.Target, acc, nested); err != nil {
				return err
			}
		}
		out[i] = clone
	}
	rec[rel.Name] = out
	return nil
}
