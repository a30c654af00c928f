// Package schema holds the small set of types that describe a collection's
// shape to every other package (filter, populate, collection) without
// those packages importing each other: relationship edges and the
// cross-collection accessor they're resolved through.
package schema

import "github.com/steveyegge/proseql/internal/record"

// RelationKind distinguishes the two edge directions spec.md §3 defines.
type RelationKind int

const (
	// Ref is one-to-one: the foreign key lives on this collection.
	Ref RelationKind = iota
	// Inverse is one-to-many: the foreign key lives on the target collection.
	Inverse
)

// Relationship describes one declared edge.
type Relationship struct {
	Name       string
	Kind       RelationKind
	Target     string
	ForeignKey string
}

// Accessor is how filter/populate reach into sibling collections without a
// direct dependency on the collection package (which itself depends on
// filter/populate) — it is implemented by *collection.Database.
type Accessor interface {
	// GetByID returns the row with id in the named collection.
	GetByID(collection, id string) (record.Record, bool)
	// ListByFK returns every row in the named collection whose field
	// equals value, in collection iteration order.
	ListByFK(collection, field string, value any) []record.Record
	// Relationships returns the edge map declared for the named
	// collection, so relationship predicates can recurse across siblings.
	Relationships(collection string) map[string]Relationship
}
