// Package record defines the entity shape ProseQL operates on and the
// dot-path helpers every other package (filter, sort, select, index) needs
// to reach into nested fields. Collections are schema-defined at runtime,
// not compile-time Go structs, so a record is a plain map.
package record

import (
	"sort"
	"strconv"
	"strings"
)

// Record is one stored entity. "id" is mandatory; everything else is
// polymorphic over the user's schema.
type Record map[string]any

// ID returns the record's id, or "" if missing/non-string.
func (r Record) ID() string {
	if v, ok := r["id"].(string); ok {
		return v
	}
	return ""
}

// Clone returns a deep copy so callers can mutate drafts without aliasing
// the stored row.
func (r Record) Clone() Record {
	return cloneValue(r).(Record)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		out := make(Record, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// Get resolves a dot-separated path against a record or nested map,
// returning (value, true) if every segment exists.
func Get(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	segs := strings.Split(path, ".")
	cur := v
	for _, seg := range segs {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		next, exists := m[seg]
		if !exists {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set assigns a dot-separated path on a record, creating intermediate maps
// as needed.
func Set(r Record, path string, value any) {
	segs := strings.Split(path, ".")
	cur := map[string]any(r)
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if rn, ok := cur[seg].(Record); ok {
				next = map[string]any(rn)
			} else {
				next = map[string]any{}
				cur[seg] = next
			}
		}
		cur = next
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Record:
		return map[string]any(t), true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

// DeepEqual reports structural equality, used by the reactive bus to
// dedup adjacent identical result sequences.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case Record:
		bv, ok := b.(Record)
		if !ok {
			bm, ok2 := b.(map[string]any)
			if !ok2 {
				return false
			}
			bv = Record(bm)
		}
		return mapDeepEqual(av, bv)
	case map[string]any:
		bv, ok := toMap(b)
		if !ok {
			return false
		}
		return mapDeepEqual(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func toMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Record:
		return map[string]any(t), true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

func mapDeepEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

// SliceDeepEqual compares two ordered record slices, used by reactive
// watchers to skip re-emitting an unchanged query result.
func SliceDeepEqual(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SortedKeys returns a record's top-level keys sorted, useful for
// deterministic iteration in tests and group-key construction.
func SortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsNumeric reports whether v is a number usable by aggregate/sort.
func IsNumeric(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
