package populate_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/populate"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccessor struct {
	rows map[string]map[string]record.Record
	rels map[string]map[string]schema.Relationship
}

func (a fakeAccessor) GetByID(collection, id string) (record.Record, bool) {
	r, ok := a.rows[collection][id]
	return r, ok
}

func (a fakeAccessor) ListByFK(collection, field string, value any) []record.Record {
	var out []record.Record
	for _, r := range a.rows[collection] {
		if v, ok := record.Get(r, field); ok && v == value {
			out = append(out, r)
		}
	}
	return out
}

func (a fakeAccessor) Relationships(collection string) map[string]schema.Relationship {
	return a.rels[collection]
}

func TestPopulateRefAttachesTarget(t *testing.T) {
	acc := fakeAccessor{
		rows: map[string]map[string]record.Record{
			"authors": {"a1": {"id": "a1", "name": "Ada"}},
		},
		rels: map[string]map[string]schema.Relationship{
			"posts": {"author": {Name: "author", Kind: schema.Ref, Target: "authors", ForeignKey: "authorId"}},
		},
	}
	rec := record.Record{"id": "p1", "authorId": "a1"}
	err := populate.Populate(rec, "posts", acc, populate.Spec{"author": true})
	require.NoError(t, err)

	nested, ok := rec["author"].(record.Record)
	require.True(t, ok)
	assert.Equal(t, "Ada", nested["name"])
}

func TestPopulateRefWithNilForeignKeyYieldsNil(t *testing.T) {
	acc := fakeAccessor{
		rels: map[string]map[string]schema.Relationship{
			"posts": {"author": {Name: "author", Kind: schema.Ref, Target: "authors", ForeignKey: "authorId"}},
		},
	}
	rec := record.Record{"id": "p1"}
	err := populate.Populate(rec, "posts", acc, populate.Spec{"author": true})
	require.NoError(t, err)
	assert.Nil(t, rec["author"])
}

func TestPopulateRefDanglingReferenceErrors(t *testing.T) {
	acc := fakeAccessor{
		rows: map[string]map[string]record.Record{"authors": {}},
		rels: map[string]map[string]schema.Relationship{
			"posts": {"author": {Name: "author", Kind: schema.Ref, Target: "authors", ForeignKey: "authorId"}},
		},
	}
	rec := record.Record{"id": "p1", "authorId": "missing"}
	err := populate.Populate(rec, "posts", acc, populate.Spec{"author": true})
	require.Error(t, err)
}

func TestPopulateInverseAttachesSiblingList(t *testing.T) {
	acc := fakeAccessor{
		rows: map[string]map[string]record.Record{
			"posts": {
				"p1": {"id": "p1", "authorId": "a1", "title": "first"},
				"p2": {"id": "p2", "authorId": "a1", "title": "second"},
			},
		},
		rels: map[string]map[string]schema.Relationship{
			"authors": {"posts": {Name: "posts", Kind: schema.Inverse, Target: "posts", ForeignKey: "authorId"}},
		},
	}
	rec := record.Record{"id": "a1"}
	err := populate.Populate(rec, "authors", acc, populate.Spec{"posts": true})
	require.NoError(t, err)

	siblings, ok := rec["posts"].([]any)
	require.True(t, ok)
	assert.Len(t, siblings, 2)
}

func TestPopulateNestedSpecRecurses(t *testing.T) {
	acc := fakeAccessor{
		rows: map[string]map[string]record.Record{
			"authors": {"a1": {"id": "a1", "name": "Ada", "countryId": "c1"}},
			"countries": {"c1": {"id": "c1", "name": "UK"}},
		},
		rels: map[string]map[string]schema.Relationship{
			"posts":   {"author": {Name: "author", Kind: schema.Ref, Target: "authors", ForeignKey: "authorId"}},
			"authors": {"country": {Name: "country", Kind: schema.Ref, Target: "countries", ForeignKey: "countryId"}},
		},
	}
	rec := record.Record{"id": "p1", "authorId": "a1"}
	err := populate.Populate(rec, "posts", acc, populate.Spec{"author": populate.Spec{"country": true}})
	require.NoError(t, err)

	author := rec["author"].(record.Record)
	country := author["country"].(record.Record)
	assert.Equal(t, "UK", country["name"])
}
