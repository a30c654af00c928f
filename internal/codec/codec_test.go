package codec_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesByExtension(t *testing.T) {
	r := codec.NewRegistry()
	for _, ext := range []string{"json", "yaml", "yml", "toml", "prose"} {
		_, err := r.ForExtension(ext)
		require.NoError(t, err, "extension %q should resolve", ext)
	}
}

func TestRegistryUnsupportedExtensionErrors(t *testing.T) {
	r := codec.NewRegistry()
	_, err := r.ForExtension("exe")
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	r := codec.NewRegistry()
	doc := map[string]any{"1": map[string]any{"id": "1", "body": "hi"}}

	data, err := r.Serialize(doc, "json", "", nil)
	require.NoError(t, err)

	decoded, err := r.Deserialize(data, "json", "")
	require.NoError(t, err)

	out, ok := decoded.(map[string]any)
	require.True(t, ok)
	row := out["1"].(map[string]any)
	assert.Equal(t, "hi", row["body"])
}

func TestFormatOverridesExtension(t *testing.T) {
	r := codec.NewRegistry()
	data, err := r.Serialize(map[string]any{"a": 1.0}, "yaml", "json", nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"a":1`)
}

func TestProseEncodeDecodeRoundTrip(t *testing.T) {
	doc := map[string]any{
		"_template": "#{id}: {title}",
		"_records": []any{
			map[string]any{"id": 1.0, "title": "first"},
			map[string]any{"id": 2.0, "title": "second"},
		},
	}
	r := codec.NewRegistry()
	data, err := r.Serialize(doc, "prose", "", nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "@prose #{id}: {title}")
	assert.Contains(t, string(data), "1: first")

	decoded, err := r.Deserialize(data, "prose", "")
	require.NoError(t, err)
	out := decoded.(map[string]any)
	recs := out["_records"].([]any)
	require.Len(t, recs, 2)
	first := recs[0].(map[string]any)
	assert.Equal(t, "first", first["title"])
	assert.Equal(t, 1.0, first["id"])
}

func TestProseEncodeRejectsMissingTemplate(t *testing.T) {
	r := codec.NewRegistry()
	_, err := r.Serialize(map[string]any{"_records": []any{}}, "prose", "", nil)
	assert.Error(t, err)
}
