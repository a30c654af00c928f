package index_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/index"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/stretchr/testify/assert"
)

func recs() []record.Record {
	return []record.Record{
		{"id": "1", "status": "open", "priority": 1.0},
		{"id": "2", "status": "open", "priority": 2.0},
		{"id": "3", "status": "closed", "priority": 1.0},
	}
}

func TestBuildEqualityAndLookup(t *testing.T) {
	eq := index.BuildEquality(recs(), []string{"status", "priority"})

	assert.True(t, eq.Has("status"))
	assert.False(t, eq.Has("missing"))

	open := eq.Lookup("status", "open")
	assert.Len(t, open, 2)
	assert.Contains(t, open, "1")
	assert.Contains(t, open, "2")

	byPriority := eq.Lookup("priority", 1.0)
	assert.Len(t, byPriority, 2)
	assert.Contains(t, byPriority, "1")
	assert.Contains(t, byPriority, "3")
}

func TestEqualityApplyCreateUpdateDelete(t *testing.T) {
	eq := index.BuildEquality(recs(), []string{"status"})

	created := record.Record{"id": "4", "status": "open"}
	eq.Apply(nil, created)
	assert.Contains(t, eq.Lookup("status", "open"), "4")

	updated := record.Record{"id": "4", "status": "closed"}
	eq.Apply(created, updated)
	assert.NotContains(t, eq.Lookup("status", "open"), "4")
	assert.Contains(t, eq.Lookup("status", "closed"), "4")

	eq.Apply(updated, nil)
	assert.NotContains(t, eq.Lookup("status", "closed"), "4")
}

func TestEqualityLookupInUnion(t *testing.T) {
	eq := index.BuildEquality(recs(), []string{"status"})
	ids := eq.LookupIn("status", []any{"open", "closed"})
	assert.Len(t, ids, 3)
}
