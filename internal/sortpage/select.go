package sortpage

import "github.com/steveyegge/proseql/internal/record"

// Select is a field whitelist: each key maps either to true (include the
// scalar field) or to a nested Select (recurse into a populated object or
// each element of a populated array). A nil Select means "select all".
type Select map[string]any

// FieldSet builds a Select from a flat list of field names.
func FieldSet(fields []string) Select {
	s := make(Select, len(fields))
	for _, f := range fields {
		s[f] = true
	}
	return s
}

// Project applies sel to rec. When sel is nil, rec is returned unchanged
// (all fields, including computed ones, per spec.md §4.3).
func Project(rec record.Record, sel Select) record.Record {
	if sel == nil {
		return rec
	}
	out := make(record.Record, len(sel))
	for field, spec := range sel {
		val, ok := rec[field]
		if !ok {
			continue
		}
		switch sub := spec.(type) {
		case Select:
			out[field] = projectNested(val, sub)
		case map[string]any:
			out[field] = projectNested(val, Select(sub))
		default:
			out[field] = val
		}
	}
	return out
}

func projectNested(val any, sel Select) any {
	switch t := val.(type) {
	case record.Record:
		return Project(t, sel)
	case map[string]any:
		return Project(record.Record(t), sel)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = projectNested(item, sel)
		}
		return out
	case nil:
		return nil
	default:
		return val
	}
}

// NestedEdges returns the keys whose select value is itself an object —
// the orchestrator implicitly populates these when no explicit populate
// set was given (spec.md §4.3, §4.8 step 2).
func NestedEdges(sel Select) []string {
	if sel == nil {
		return nil
	}
	var out []string
	for field, spec := range sel {
		switch spec.(type) {
		case Select, map[string]any:
			out = append(out, field)
		}
	}
	return out
}

// ReferencesComputed reports whether sel mentions any of the given
// computed-field names, used for the computed stage's lazy-skip.
func ReferencesComputed(sel Select, computedNames []string) bool {
	if sel == nil {
		return true // unselected = all fields, including computed
	}
	for _, name := range computedNames {
		if _, ok := sel[name]; ok {
			return true
		}
	}
	return false
}
