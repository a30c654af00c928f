// Package index implements the two derived structures spec.md §4.2
// describes: an equality index (value -> id set) and an inverted search
// index (token -> id set), both built from a snapshot and then maintained
// incrementally by per-field deltas rather than rebuilt on every mutation.
package index

import "github.com/steveyegge/proseql/internal/record"

// Equality is a value->id-set index for one or more configured field
// paths (spec.md §3 "indexes").
type Equality struct {
	paths   []string
	buckets map[string]map[any]map[string]struct{}
}

// BuildEquality scans recs once and buckets ids by value for each path.
func BuildEquality(recs []record.Record, paths []string) *Equality {
	e := &Equality{
		paths:   append([]string(nil), paths...),
		buckets: make(map[string]map[any]map[string]struct{}, len(paths)),
	}
	for _, p := range paths {
		e.buckets[p] = make(map[any]map[string]struct{})
	}
	for _, r := range recs {
		e.insert(r)
	}
	return e
}

// Paths reports which field paths this index covers.
func (e *Equality) Paths() []string { return e.paths }

// Has reports whether path is indexed.
func (e *Equality) Has(path string) bool {
	_, ok := e.buckets[path]
	return ok
}

func (e *Equality) insert(r record.Record) {
	id := r.ID()
	for _, p := range e.paths {
		v, ok := record.Get(r, p)
		if !ok {
			continue
		}
		key := normalize(v)
		bucket, ok := e.buckets[p][key]
		if !ok {
			bucket = make(map[string]struct{})
			e.buckets[p][key] = bucket
		}
		bucket[id] = struct{}{}
	}
}

func (e *Equality) remove(r record.Record) {
	id := r.ID()
	for _, p := range e.paths {
		v, ok := record.Get(r, p)
		if !ok {
			continue
		}
		key := normalize(v)
		if bucket, ok := e.buckets[p][key]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(e.buckets[p], key)
			}
		}
	}
}

// Apply reconciles the index with a mutation: old is the prior row (nil on
// create), cur is the new row (nil on delete). Only the configured paths
// whose value actually changed are touched — per-field deltas, not a
// rebuild (spec.md §9 "Index incrementality").
func (e *Equality) Apply(old, cur record.Record) {
	for _, p := range e.paths {
		var oldVal, newVal any
		var hadOld, hasNew bool
		if old != nil {
			oldVal, hadOld = record.Get(old, p)
		}
		if cur != nil {
			newVal, hasNew = record.Get(cur, p)
		}
		if hadOld && hasNew && normalize(oldVal) == normalize(newVal) {
			continue
		}
		id := idOf(old, cur)
		if hadOld {
			if bucket, ok := e.buckets[p][normalize(oldVal)]; ok {
				delete(bucket, id)
				if len(bucket) == 0 {
					delete(e.buckets[p], normalize(oldVal))
				}
			}
		}
		if hasNew {
			key := normalize(newVal)
			bucket, ok := e.buckets[p][key]
			if !ok {
				bucket = make(map[string]struct{})
				e.buckets[p][key] = bucket
			}
			bucket[id] = struct{}{}
		}
	}
}

func idOf(old, cur record.Record) string {
	if cur != nil {
		return cur.ID()
	}
	return old.ID()
}

// Lookup returns the id set for path=value, or nil if the path isn't
// indexed or no row matches.
func (e *Equality) Lookup(path string, value any) map[string]struct{} {
	bucket, ok := e.buckets[path]
	if !ok {
		return nil
	}
	return bucket[normalize(value)]
}

// LookupIn returns the union of id sets for path in values.
func (e *Equality) LookupIn(path string, values []any) map[string]struct{} {
	bucket, ok := e.buckets[path]
	if !ok {
		return nil
	}
	out := make(map[string]struct{})
	for _, v := range values {
		for id := range bucket[normalize(v)] {
			out[id] = struct{}{}
		}
	}
	return out
}

// normalize maps numeric types onto a single comparable representation so
// float64(1) and int(1) bucket together, matching the loose equality the
// filter evaluator uses.
func normalize(v any) any {
	if f, ok := record.IsNumeric(v); ok {
		if _, isString := v.(string); !isString {
			return f
		}
	}
	return v
}
