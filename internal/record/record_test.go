package record_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/record"
	"github.com/stretchr/testify/assert"
)

func TestGetSetDotPath(t *testing.T) {
	r := record.Record{"a": map[string]any{"b": 1.0}}

	v, ok := record.Get(r, "a.b")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = record.Get(r, "a.c")
	assert.False(t, ok)

	record.Set(r, "a.c", "hi")
	v, ok = record.Get(r, "a.c")
	assert.True(t, ok)
	assert.Equal(t, "hi", v)
}

func TestSetCreatesIntermediateMaps(t *testing.T) {
	r := record.Record{}
	record.Set(r, "x.y.z", 42.0)
	v, ok := record.Get(r, "x.y.z")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestCloneIsDeepEnoughForTopLevelMutation(t *testing.T) {
	r := record.Record{"id": "1", "tags": []any{"a"}}
	c := r.Clone()
	c["id"] = "2"
	assert.Equal(t, "1", r["id"])
	assert.Equal(t, "2", c["id"])
}

func TestDeepEqual(t *testing.T) {
	a := record.Record{"id": "1", "n": 1.0}
	b := record.Record{"id": "1", "n": 1.0}
	c := record.Record{"id": "1", "n": 2.0}
	assert.True(t, record.DeepEqual(a, b))
	assert.False(t, record.DeepEqual(a, c))
}

func TestSliceDeepEqualOrderSensitive(t *testing.T) {
	a := []record.Record{{"id": "1"}, {"id": "2"}}
	b := []record.Record{{"id": "1"}, {"id": "2"}}
	c := []record.Record{{"id": "2"}, {"id": "1"}}
	assert.True(t, record.SliceDeepEqual(a, b))
	assert.False(t, record.SliceDeepEqual(a, c))
}

func TestIsNumeric(t *testing.T) {
	f, ok := record.IsNumeric(3.5)
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)

	f, ok = record.IsNumeric("3.5")
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)

	_, ok = record.IsNumeric("not-a-number")
	assert.False(t, ok)
}
