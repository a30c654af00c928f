package sortpage

import (
	"math"

	"github.com/steveyegge/proseql/internal/record"
)

// Paginate applies offset-then-limit. Fractional bounds are floored,
// negatives clamp to zero, and nil means "no bound" (spec.md §4.3).
func Paginate(recs []record.Record, offset, limit *float64) []record.Record {
	start := 0
	if offset != nil {
		start = clampFloor(*offset)
	}
	if start > len(recs) {
		start = len(recs)
	}
	recs = recs[start:]

	if limit == nil {
		return recs
	}
	n := clampFloor(*limit)
	if n > len(recs) {
		n = len(recs)
	}
	return recs[:n]
}

func clampFloor(f float64) int {
	if f <= 0 {
		return 0
	}
	return int(math.Floor(f))
}
