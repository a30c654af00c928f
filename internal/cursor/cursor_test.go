package cursor_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/cursor"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/sortpage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sorted() []record.Record {
	return []record.Record{
		{"id": "1", "n": 1.0},
		{"id": "2", "n": 2.0},
		{"id": "3", "n": 3.0},
		{"id": "4", "n": 4.0},
	}
}

func TestResolveSortInjectsKeyWhenNoExplicitSort(t *testing.T) {
	keys, err := cursor.ResolveSort(nil, "n")
	require.NoError(t, err)
	assert.Equal(t, []sortpage.Key{{Path: "n", Desc: false}}, keys)
}

func TestResolveSortAcceptsMatchingLeadKey(t *testing.T) {
	explicit := []sortpage.Key{{Path: "n", Desc: true}, {Path: "id"}}
	keys, err := cursor.ResolveSort(explicit, "n")
	require.NoError(t, err)
	assert.Equal(t, explicit, keys)
}

func TestResolveSortRejectsMismatchedLeadKey(t *testing.T) {
	_, err := cursor.ResolveSort([]sortpage.Key{{Path: "other"}}, "n")
	require.Error(t, err)
}

func TestApplyFirstPageHasNextNoPrevious(t *testing.T) {
	first := 2
	page, err := cursor.Apply(sorted(), cursor.Config{Key: "n", First: &first})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "1", page.Items[0].ID())
	assert.Equal(t, "2", page.Items[1].ID())
	assert.True(t, page.PageInfo.HasNextPage)
	assert.False(t, page.PageInfo.HasPreviousPage)
}

func TestApplyAfterCursorResumesPastPosition(t *testing.T) {
	after := cursor.Encode(record.Record{"id": "2", "n": 2.0}, "n")
	first := 2
	page, err := cursor.Apply(sorted(), cursor.Config{Key: "n", After: &after, First: &first})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "3", page.Items[0].ID())
	assert.Equal(t, "4", page.Items[1].ID())
	assert.True(t, page.PageInfo.HasPreviousPage)
	assert.False(t, page.PageInfo.HasNextPage)
}

func TestApplyLastTakesTrailingWindow(t *testing.T) {
	last := 2
	page, err := cursor.Apply(sorted(), cursor.Config{Key: "n", Last: &last})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "3", page.Items[0].ID())
	assert.Equal(t, "4", page.Items[1].ID())
}

func TestApplyRejectsInvalidCursorEncoding(t *testing.T) {
	bad := "not-valid-base64!!"
	_, err := cursor.Apply(sorted(), cursor.Config{Key: "n", After: &bad})
	assert.Error(t, err)
}
