// Package computed derives synthetic fields from a (possibly populated)
// entity (spec.md §4.5). The orchestrator is responsible for the
// lazy-skip optimization: this package only resolves what it's asked to.
package computed

import (
	"fmt"

	"github.com/steveyegge/proseql/internal/record"
)

// Func is a pure derivation over an entity, run after populate so it may
// read relationship-resolved fields.
type Func func(rec record.Record) (any, error)

// Fields maps computed-field name to its derivation.
type Fields map[string]Func

// Names returns the configured computed-field names, for the lazy-skip
// check in sortpage.ReferencesComputed.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	return names
}

// Resolve computes every configured field and stores it on rec.
func Resolve(rec record.Record, fields Fields) error {
	for name, fn := range fields {
		v, err := fn(rec)
		if err != nil {
			return fmt.Errorf("computed field %q: %w", name, err)
		}
		rec[name] = v
	}
	return nil
}
