// Package migrate runs the forward schema-migration chain of spec.md
// §4.13 at load time: a collection's on-disk version is walked forward,
// one Step at a time, to the schema's declared target version. Grounded
// on the teacher's internal/jsonl import path (internal/jsonl/reader.go),
// which also validates a sequential, gap-free structure before trusting
// untrusted on-disk data.
package migrate

import (
	"fmt"
	"sort"

	"github.com/steveyegge/proseql/internal/dberrors"
)

// Step upgrades every record of a collection from Step.From to Step.From+1.
type Step struct {
	From  int
	Apply func(record map[string]any) (map[string]any, error)
}

// Chain is a collection's full, declared migration chain plus the schema
// version it targets.
type Chain struct {
	TargetVersion int
	Steps         []Step
}

// Validate checks the chain is duplicate-free and gap-free from its
// lowest declared From up to TargetVersion-1.
func (c Chain) Validate() error {
	seen := make(map[int]bool, len(c.Steps))
	for _, s := range c.Steps {
		if seen[s.From] {
			return &dberrors.MigrationError{
				Reason: fmt.Sprintf("duplicate migration step declared for version %d", s.From),
			}
		}
		seen[s.From] = true
	}
	sorted := make([]int, 0, len(seen))
	for v := range seen {
		sorted = append(sorted, v)
	}
	sort.Ints(sorted)
	for i, v := range sorted {
		if i > 0 && v != sorted[i-1]+1 {
			return &dberrors.MigrationError{
				Reason: fmt.Sprintf("gap in migration chain: no step declared for version %d", sorted[i-1]+1),
			}
		}
	}
	if len(sorted) > 0 && sorted[len(sorted)-1] < c.TargetVersion-1 {
		return &dberrors.MigrationError{
			Reason: fmt.Sprintf("gap in migration chain: no step declared for version %d", sorted[len(sorted)-1]+1),
		}
	}
	if len(sorted) > 0 && sorted[len(sorted)-1] >= c.TargetVersion {
		return fmt.Errorf("migrate: chain reaches version %d at or past declared target %d", sorted[len(sorted)-1]+1, c.TargetVersion)
	}
	return nil
}

// Run walks a single record forward from storedVersion to c.TargetVersion,
// applying one Step per intervening version. dryRun applies every step but
// discards the result, returning the original record unchanged alongside
// the report of what would have happened — spec.md's $dryRunMigrations.
func (c Chain) Run(collection string, storedVersion int, rec map[string]any, dryRun bool) (map[string]any, Report, error) {
	report := Report{Collection: collection, From: storedVersion, To: c.TargetVersion}
	if storedVersion > c.TargetVersion {
		return nil, report, &dberrors.MigrationError{
			Collection: collection,
			Reason:     fmt.Sprintf("stored version %d is newer than target version %d", storedVersion, c.TargetVersion),
		}
	}
	byFrom := make(map[int]Step, len(c.Steps))
	for _, s := range c.Steps {
		byFrom[s.From] = s
	}

	cur := rec
	for v := storedVersion; v < c.TargetVersion; v++ {
		step, ok := byFrom[v]
		if !ok {
			return nil, report, &dberrors.MigrationError{
				Collection: collection,
				Reason:     fmt.Sprintf("no migration step declared for version %d", v),
			}
		}
		next, err := step.Apply(cloneMap(cur))
		if err != nil {
			return nil, report, &dberrors.MigrationError{
				Collection: collection,
				Reason:     fmt.Sprintf("transform from version %d to %d failed", v, v+1),
				Cause:      err,
			}
		}
		cur = next
		report.StepsApplied++
	}

	if dryRun {
		return rec, report, nil
	}
	return cur, report, nil
}

// Report summarizes one record's (or, aggregated, one collection's)
// migration run — the teacher's cmd/bd/prompt.go confirmation prompts
// render a similar before/after summary ahead of a destructive action.
type Report struct {
	Collection   string
	From         int
	To           int
	StepsApplied int
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
