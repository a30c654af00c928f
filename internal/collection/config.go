// Package collection is the in-memory mutation kernel of spec.md §4.9 and
// the relationship-mutation layer of §4.10: the authoritative mapping for
// every collection, its derived indexes, and the DRAFT -> validate ->
// FK-check -> unique-check -> hook -> commit state machine every write
// passes through. Modeled on the teacher's internal/storage/memory
// backend, which is also an in-process map guarded by a coarse lock with
// swap-on-write semantics, generalized here to schema-less records,
// declared relationships, and computed fields.
package collection

import (
	"context"

	"github.com/steveyegge/proseql/internal/computed"
	"github.com/steveyegge/proseql/internal/idgen"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
	"github.com/steveyegge/proseql/internal/validator"
)

// HookFunc is a lifecycle hook. Before-hooks receive a mutable Draft and
// may return an error to abort the mutation; after-hooks observe the
// committed record and their error does not roll back the write but is
// reported as a *dberrors.HookError.
type HookFunc func(ctx context.Context, evt HookEvent) error

// HookEvent is passed to every lifecycle hook invocation.
type HookEvent struct {
	Collection string
	Kind       string // "create", "update", "delete"
	Draft      record.Record // mutable, only meaningful to before-hooks
	Before     record.Record // nil on create
	After      record.Record // nil on delete-before-hook
}

// Hooks is one collection's full lifecycle hook set; any field may be nil.
type Hooks struct {
	BeforeCreate HookFunc
	AfterCreate  HookFunc
	BeforeUpdate HookFunc
	AfterUpdate  HookFunc
	BeforeDelete HookFunc
	AfterDelete  HookFunc
}

// DeleteRule governs what happens to dependents when their ref target is
// deleted (spec.md §4.10 "on delete").
type DeleteRule int

const (
	Restrict DeleteRule = iota
	Cascade
	SetNull
)

// RelationshipConfig augments a schema.Relationship with mutation-time
// behavior the filter/populate packages don't need.
type RelationshipConfig struct {
	schema.Relationship
	OnDelete DeleteRule
}

// UniqueConstraint is one declared uniqueness rule, over one or more
// fields taken together.
type UniqueConstraint struct {
	Name   string
	Fields []string
}

// Config declares one collection's shape: its validator, relationships,
// indexes, computed fields, hooks, and persistence settings.
type Config struct {
	Validator       validator.Validator
	Relationships   map[string]RelationshipConfig
	Unique          []UniqueConstraint
	IndexPaths      []string
	SearchPaths     []string
	Computed        computed.Fields
	Hooks           Hooks
	File            string
	Format          string // "" infers from File's extension
	AppendOnly      bool
	SoftDeleteField string // "" disables soft delete
	IDGenerator     string // name registered in the idgen.Registry; "" -> "uuid"
	SchemaVersion   int    // stamped into the persisted document as "_schemaVersion"
}

func (c Config) schemaRelationships() map[string]schema.Relationship {
	out := make(map[string]schema.Relationship, len(c.Relationships))
	for k, v := range c.Relationships {
		out[k] = v.Relationship
	}
	return out
}

func (c Config) idGeneratorName() string {
	if c.IDGenerator == "" {
		return idgen.UUIDName
	}
	return c.IDGenerator
}
