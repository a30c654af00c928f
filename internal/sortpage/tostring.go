package sortpage

import "fmt"

// jsonLikeString coerces an arbitrary value to a string for the sort
// comparator's "otherwise coerce to string" fallback.
func jsonLikeString(v any) string {
	return fmt.Sprintf("%v", v)
}
