package computed_test

import (
	"errors"
	"testing"

	"github.com/steveyegge/proseql/internal/computed"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStoresDerivedValue(t *testing.T) {
	fields := computed.Fields{
		"fullName": func(rec record.Record) (any, error) {
			return rec["first"].(string) + " " + rec["last"].(string), nil
		},
	}
	rec := record.Record{"first": "Ada", "last": "Lovelace"}
	require.NoError(t, computed.Resolve(rec, fields))
	assert.Equal(t, "Ada Lovelace", rec["fullName"])
}

func TestResolvePropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	fields := computed.Fields{
		"bad": func(rec record.Record) (any, error) { return nil, sentinel },
	}
	err := computed.Resolve(record.Record{}, fields)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestNamesReturnsEveryConfiguredField(t *testing.T) {
	fields := computed.Fields{
		"a": func(record.Record) (any, error) { return nil, nil },
		"b": func(record.Record) (any, error) { return nil, nil },
	}
	names := fields.Names()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}
