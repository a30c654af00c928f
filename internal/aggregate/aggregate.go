// Package aggregate implements count/sum/avg/min/max, optionally grouped
// by one or more keys, over the filtered-but-unpaginated candidate list
// (spec.md §4.6).
package aggregate

import (
	"github.com/steveyegge/proseql/internal/record"
)

// FieldResult holds the sum/avg/min/max aggregates for one field; the
// count lives on the enclosing Scalar or Group.
type FieldResult struct {
	Sum float64
	Avg *float64 // nil when every value was non-numeric (or there were none)
	Min any      // nil ("undefined") when there were no numeric values
	Max any
}

// Scalar is the ungrouped aggregate result.
type Scalar struct {
	Count  int
	Fields map[string]FieldResult
}

// Group is one bucket of a grouped aggregate result.
type Group struct {
	Key    []any
	Count  int
	Fields map[string]FieldResult
}

// Compute produces the scalar aggregate over recs for the given field
// paths.
func Compute(recs []record.Record, fields []string) Scalar {
	return Scalar{
		Count:  len(recs),
		Fields: computeFields(recs, fields),
	}
}

// ComputeGrouped buckets recs by the tuple of groupBy field values (nil
// forms its own group) and aggregates each bucket, preserving
// first-encounter group order.
func ComputeGrouped(recs []record.Record, fields []string, groupBy []string) []Group {
	type bucket struct {
		key  []any
		recs []record.Record
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, r := range recs {
		key := make([]any, len(groupBy))
		for i, p := range groupBy {
			v, _ := record.Get(r, p)
			key[i] = v
		}
		k := groupKeyString(key)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{key: key}
			buckets[k] = b
			order = append(order, k)
		}
		b.recs = append(b.recs, r)
	}

	out := make([]Group, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		out = append(out, Group{
			Key:    b.key,
			Count:  len(b.recs),
			Fields: computeFields(b.recs, fields),
		})
	}
	return out
}

func computeFields(recs []record.Record, fields []string) map[string]FieldResult {
	out := make(map[string]FieldResult, len(fields))
	for _, f := range fields {
		out[f] = computeField(recs, f)
	}
	return out
}

func computeField(recs []record.Record, path string) FieldResult {
	var (
		sum     float64
		count   int
		min, max any
		minF, maxF float64
	)
	for _, r := range recs {
		v, ok := record.Get(r, path)
		if !ok {
			continue
		}
		f, ok := record.IsNumeric(v)
		if !ok {
			continue
		}
		sum += f
		if count == 0 || f < minF {
			minF = f
			min = v
		}
		if count == 0 || f > maxF {
			maxF = f
			max = v
		}
		count++
	}
	res := FieldResult{Sum: sum, Min: min, Max: max}
	if count > 0 {
		avg := sum / float64(count)
		res.Avg = &avg
	}
	return res
}

// groupKeyString builds a comparable map key from a grouping tuple. Values
// are scalars (string/number/bool/nil) per the data model, so a simple
// delimited encoding is sufficient and avoids reflect-based hashing.
func groupKeyString(key []any) string {
	var buf []byte
	for i, v := range key {
		if i > 0 {
			buf = append(buf, '\x1f')
		}
		buf = append(buf, encodeKeyPart(v)...)
	}
	return string(buf)
}

func encodeKeyPart(v any) string {
	if v == nil {
		return "\x00null"
	}
	if f, ok := record.IsNumeric(v); ok {
		if _, isStr := v.(string); !isStr {
			return "n:" + floatToString(f)
		}
	}
	switch t := v.(type) {
	case string:
		return "s:" + t
	case bool:
		if t {
			return "b:1"
		}
		return "b:0"
	default:
		return "?:" + floatToString(0)
	}
}

func floatToString(f float64) string {
	// Minimal dependency-free float formatting sufficient for stable,
	// collision-free group keys; precision matches record.IsNumeric's
	// float64 domain.
	return fmtFloat(f)
}
