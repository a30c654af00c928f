// Package sortpage implements the stable multi-key sort, offset/limit
// pagination, and whitelist select-projection of spec.md §4.3.
package sortpage

import (
	"sort"
	"time"

	"github.com/steveyegge/proseql/internal/record"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Key is one (path, direction) pair in a sort spec.
type Key struct {
	Path string
	Desc bool
}

var collator = collate.New(language.Und)

// Sort stably orders recs by keys. Nulls sort to the end regardless of
// direction; strings compare locale-aware; numbers numerically; booleans
// false<true; timestamps chronologically; anything else as a string.
func Sort(recs []record.Record, keys []Key) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return less(recs[i], recs[j], keys)
	})
}

func less(a, b record.Record, keys []Key) bool {
	for _, k := range keys {
		av, aok := record.Get(a, k.Path)
		bv, bok := record.Get(b, k.Path)
		aNull := !aok || av == nil
		bNull := !bok || bv == nil

		switch {
		case aNull && bNull:
			continue
		case aNull:
			return false // nullish always sorts to the end
		case bNull:
			return true
		}

		c := compareValues(av, bv)
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// compareValues returns <0, 0, >0 for a<b, a==b, a>b under spec.md §4.3's
// type-directed comparison rules.
func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok2 := b.(time.Time); ok2 {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if af, ok := record.IsNumeric(a); ok {
		if bf, ok2 := record.IsNumeric(b); ok2 {
			if _, aIsStr := a.(string); !aIsStr {
				if _, bIsStr := b.(string); !bIsStr {
					switch {
					case af < bf:
						return -1
					case af > bf:
						return 1
					default:
						return 0
					}
				}
			}
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok2 := b.(bool); ok2 {
			switch {
			case ab == bb:
				return 0
			case !ab && bb:
				return -1
			default:
				return 1
			}
		}
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return collator.CompareString(as, bs)
	}
	return collator.CompareString(toString(a), toString(b))
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return jsonLikeString(v)
	}
}
