package collection_test

import (
	"context"
	"testing"

	"github.com/steveyegge/proseql/internal/collection"
	"github.com/steveyegge/proseql/internal/eventbus"
	"github.com/steveyegge/proseql/internal/idgen"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB builds a two-collection database: authors (has many posts via
// the inverse side) and posts (ref to authors via authorId), with a unique
// constraint on authors.email. onDelete governs the posts->authors rule.
func newTestDB(t *testing.T, onDelete collection.DeleteRule) *collection.Database {
	t.Helper()
	configs := []collection.NamedConfig{
		{
			Name: "authors",
			Config: collection.Config{
				Unique: []collection.UniqueConstraint{
					{Name: "authors_email_unique", Fields: []string{"email"}},
				},
				Relationships: map[string]collection.RelationshipConfig{
					"posts": {Relationship: schema.Relationship{Name: "posts", Kind: schema.Inverse, Target: "posts", ForeignKey: "authorId"}},
				},
			},
		},
		{
			Name: "posts",
			Config: collection.Config{
				Relationships: map[string]collection.RelationshipConfig{
					"author": {Relationship: schema.Relationship{Name: "author", Kind: schema.Ref, Target: "authors", ForeignKey: "authorId"}, OnDelete: onDelete},
				},
			},
		},
	}
	db, err := collection.New(configs, map[string][]record.Record{}, idgen.NewRegistry(), eventbus.New(), nil, nil)
	require.NoError(t, err)
	return db
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	created, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	assert.NotEmpty(t, created["id"])
	assert.NotEmpty(t, created["createdAt"])
	assert.Equal(t, created["createdAt"], created["updatedAt"])
	assert.Equal(t, "Ada", created["name"])
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	created, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	_, err = db.Create(context.Background(), "authors", record.Record{"id": created.ID(), "name": "Dup", "email": "dup@example.com"})
	require.Error(t, err)
}

func TestCreateRejectsUniqueConstraintCollision(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	_, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	_, err = db.Create(context.Background(), "authors", record.Record{"name": "Bea", "email": "ada@example.com"})
	require.Error(t, err)
}

func TestCreateRejectsUnknownForeignKey(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	_, err := db.Create(context.Background(), "posts", record.Record{"title": "hi", "authorId": "missing"})
	require.Error(t, err)
}

func TestCreateAcceptsValidForeignKey(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	post, err := db.Create(context.Background(), "posts", record.Record{"title": "hi", "authorId": author.ID()})
	require.NoError(t, err)
	assert.Equal(t, author.ID(), post["authorId"])
}

func TestUpdateAppliesSetPatch(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	updated, err := db.Update(context.Background(), "authors", author.ID(), map[string]any{"$set": map[string]any{"name": "Ada Lovelace"}})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated["name"])
	assert.NotEqual(t, author["updatedAt"], updated["updatedAt"])
}

func TestUpdateRejectsIDChange(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	_, err = db.Update(context.Background(), "authors", author.ID(), map[string]any{"$set": map[string]any{"id": "other-id"}})
	require.Error(t, err)

	c, _ := db.Collection("authors")
	rows, _, _ := c.Snapshot()
	_, stillThere := rows[author.ID()]
	assert.True(t, stillThere, "the row must be unchanged after a rejected id update")
}

func TestUpdateRejectsCreatedAtChange(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	_, err = db.Update(context.Background(), "authors", author.ID(), map[string]any{"$set": map[string]any{"createdAt": "2099-01-01T00:00:00Z"}})
	require.Error(t, err)

	c, _ := db.Collection("authors")
	rows, _, _ := c.Snapshot()
	assert.Equal(t, author["createdAt"], rows[author.ID()]["createdAt"])
}

func TestUpdateUnknownIDReturnsNotFound(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	_, err := db.Update(context.Background(), "authors", "missing", map[string]any{"$set": map[string]any{"name": "x"}})
	require.Error(t, err)
}

func TestDeletePlainLeavesForeignKeyDangling(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)
	post, err := db.Create(context.Background(), "posts", record.Record{"title": "hi", "authorId": author.ID()})
	require.NoError(t, err)

	require.NoError(t, db.Delete(context.Background(), "authors", author.ID()),
		"plain delete must not enforce restrict/cascade/setNull")

	c, _ := db.Collection("posts")
	rows, _, _ := c.Snapshot()
	got, ok := rows[post.ID()]
	require.True(t, ok)
	assert.Equal(t, author.ID(), got["authorId"], "the dangling FK is left as-is by plain delete")
}

func TestDeleteWithRelationshipsRestrictBlocksWhenDependentsExist(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)
	_, err = db.Create(context.Background(), "posts", record.Record{"title": "hi", "authorId": author.ID()})
	require.NoError(t, err)

	_, err = db.DeleteWithRelationships(context.Background(), "authors", author.ID())
	require.Error(t, err)
}

func TestDeleteWithRelationshipsCascadeRemovesDependentsAndReportsThem(t *testing.T) {
	db := newTestDB(t, collection.Cascade)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)
	post, err := db.Create(context.Background(), "posts", record.Record{"title": "hi", "authorId": author.ID()})
	require.NoError(t, err)

	report, err := db.DeleteWithRelationships(context.Background(), "authors", author.ID())
	require.NoError(t, err)

	c, _ := db.Collection("posts")
	rows, _, _ := c.Snapshot()
	_, stillThere := rows[post.ID()]
	assert.False(t, stillThere)

	require.Len(t, report.Deleted, 1)
	assert.Equal(t, "posts", report.Deleted[0].Collection)
	assert.Equal(t, post.ID(), report.Deleted[0].ID)
	assert.Empty(t, report.Nulled)
}

func TestDeleteWithRelationshipsSetNullClearsForeignKeyAndReportsIt(t *testing.T) {
	db := newTestDB(t, collection.SetNull)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)
	post, err := db.Create(context.Background(), "posts", record.Record{"title": "hi", "authorId": author.ID()})
	require.NoError(t, err)

	report, err := db.DeleteWithRelationships(context.Background(), "authors", author.ID())
	require.NoError(t, err)

	c, _ := db.Collection("posts")
	rows, _, _ := c.Snapshot()
	got, ok := rows[post.ID()]
	require.True(t, ok)
	assert.Nil(t, got["authorId"])

	require.Len(t, report.Nulled, 1)
	assert.Equal(t, "posts", report.Nulled[0].Collection)
	assert.Equal(t, post.ID(), report.Nulled[0].ID)
	assert.Empty(t, report.Deleted)
}

func TestSoftDeleteMarksFieldInsteadOfRemoving(t *testing.T) {
	configs := []collection.NamedConfig{
		{Name: "notes", Config: collection.Config{SoftDeleteField: "deletedAt"}},
	}
	db, err := collection.New(configs, map[string][]record.Record{}, idgen.NewRegistry(), eventbus.New(), nil, nil)
	require.NoError(t, err)

	created, err := db.Create(context.Background(), "notes", record.Record{"body": "hi"})
	require.NoError(t, err)

	require.NoError(t, db.Delete(context.Background(), "notes", created.ID()))

	c, _ := db.Collection("notes")
	rows, _, _ := c.Snapshot()
	got, ok := rows[created.ID()]
	require.True(t, ok, "soft-deleted row must still be present")
	assert.NotEmpty(t, got["deletedAt"])
}

func TestCreateAllowsReusingUniqueFieldFromSoftDeletedRow(t *testing.T) {
	configs := []collection.NamedConfig{
		{
			Name: "notes",
			Config: collection.Config{
				SoftDeleteField: "deletedAt",
				Unique: []collection.UniqueConstraint{
					{Name: "notes_email_unique", Fields: []string{"email"}},
				},
			},
		},
	}
	db, err := collection.New(configs, map[string][]record.Record{}, idgen.NewRegistry(), eventbus.New(), nil, nil)
	require.NoError(t, err)

	first, err := db.Create(context.Background(), "notes", record.Record{"email": "a@example.com"})
	require.NoError(t, err)
	require.NoError(t, db.Delete(context.Background(), "notes", first.ID()))

	_, err = db.Create(context.Background(), "notes", record.Record{"email": "a@example.com"})
	assert.NoError(t, err, "a soft-deleted row's unique value must be reusable by a new active row")
}

func TestUpsertCreatesWhenNoMatch(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	created, err := db.Upsert(context.Background(), "authors", map[string]any{"email": "new@example.com"}, record.Record{"name": "New"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", created["email"])
	assert.Equal(t, "New", created["name"])
}

func TestUpsertUpdatesWhenMatchFound(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	updated, err := db.Upsert(context.Background(), "authors", map[string]any{"email": "ada@example.com"}, record.Record{"name": "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, author.ID(), updated.ID())
	assert.Equal(t, "Ada L.", updated["name"])
}

func TestRelationshipConnectOperatorSetsForeignKey(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{"name": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)

	post, err := db.Create(context.Background(), "posts", record.Record{
		"title":  "hi",
		"author": map[string]any{"$connect": author.ID()},
	})
	require.NoError(t, err)
	assert.Equal(t, author.ID(), post["authorId"])
}

func TestRelationshipInverseCreateOperatorCreatesSiblings(t *testing.T) {
	db := newTestDB(t, collection.Restrict)
	author, err := db.Create(context.Background(), "authors", record.Record{
		"name":  "Ada",
		"email": "ada@example.com",
		"posts": map[string]any{"$create": []any{map[string]any{"title": "first"}}},
	})
	require.NoError(t, err)

	dependents := db.ListByFK("posts", "authorId", author.ID())
	require.Len(t, dependents, 1)
	assert.Equal(t, "first", dependents[0]["title"])
}
