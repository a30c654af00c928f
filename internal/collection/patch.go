package collection

import (
	"github.com/steveyegge/proseql/internal/record"
)

// ApplyPatch mutates working in place per spec.md §4.9's update operators.
// A plain (non-operator) map is treated as {"$set": patch}, so a bare
// literal patch is shorthand for a full replace-the-named-fields update.
func ApplyPatch(working record.Record, patch map[string]any) {
	if !hasOperatorKeys(patch) {
		applySet(working, patch)
		return
	}
	for op, arg := range patch {
		fields, _ := arg.(map[string]any)
		switch op {
		case "$set":
			applySet(working, fields)
		case "$increment":
			applyNumeric(working, fields, func(a, b float64) float64 { return a + b })
		case "$decrement":
			applyNumeric(working, fields, func(a, b float64) float64 { return a - b })
		case "$multiply":
			applyNumeric(working, fields, func(a, b float64) float64 { return a * b })
		case "$append":
			applyArray(working, fields, func(arr []any, v any) []any { return append(arr, v) })
		case "$prepend":
			applyArray(working, fields, func(arr []any, v any) []any { return append([]any{v}, arr...) })
		case "$remove":
			applyArray(working, fields, func(arr []any, v any) []any { return removeValue(arr, v) })
		case "$toggle":
			for path := range fields {
				cur, _ := record.Get(working, path)
				b, _ := cur.(bool)
				record.Set(working, path, !b)
			}
		}
	}
}

var patchOperators = map[string]bool{
	"$set": true, "$increment": true, "$decrement": true, "$multiply": true,
	"$append": true, "$prepend": true, "$remove": true, "$toggle": true,
}

func hasOperatorKeys(patch map[string]any) bool {
	if len(patch) == 0 {
		return false
	}
	for k := range patch {
		if !patchOperators[k] {
			return false
		}
	}
	return true
}

func applySet(working record.Record, fields map[string]any) {
	for path, v := range fields {
		record.Set(working, path, v)
	}
}

func applyNumeric(working record.Record, fields map[string]any, combine func(a, b float64) float64) {
	for path, delta := range fields {
		d, ok := record.IsNumeric(delta)
		if !ok {
			continue
		}
		cur, _ := record.Get(working, path)
		base, _ := record.IsNumeric(cur)
		record.Set(working, path, combine(base, d))
	}
}

func applyArray(working record.Record, fields map[string]any, op func([]any, any) []any) {
	for path, v := range fields {
		cur, _ := record.Get(working, path)
		arr, _ := cur.([]any)
		record.Set(working, path, op(arr, v))
	}
}

func removeValue(arr []any, v any) []any {
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		if looseEqualValue(item, v) {
			continue
		}
		out = append(out, item)
	}
	return out
}
