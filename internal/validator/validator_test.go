package validator_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/record"
	"github.com/steveyegge/proseql/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRequiredField(t *testing.T) {
	s := validator.New(
		validator.Field{Path: "title", Type: "string", Required: true},
	)

	_, issues, err := s.Validate(record.Record{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "title", issues[0].Field)
}

func TestSchemaDefault(t *testing.T) {
	s := validator.New(
		validator.Field{Path: "status", Default: "open"},
	)

	out, issues, err := s.Validate(record.Record{})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, "open", out["status"])
}

func TestSchemaTypeMismatch(t *testing.T) {
	s := validator.New(
		validator.Field{Path: "count", Type: "number"},
	)
	_, issues, err := s.Validate(record.Record{"count": "not a number"})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "number")
}

func TestSchemaCustomCheck(t *testing.T) {
	s := validator.New(
		validator.Field{
			Path: "email",
			Type: "string",
			Checks: []validator.Check{
				func(v any) (string, bool) {
					s, _ := v.(string)
					if len(s) == 0 || s[0] == '@' {
						return "email must not start with @", false
					}
					return "", true
				},
			},
		},
	)
	_, issues, err := s.Validate(record.Record{"email": "@bad"})
	require.NoError(t, err)
	require.Len(t, issues, 1)
}

func TestFuncAdapter(t *testing.T) {
	var v validator.Validator = validator.Func(func(r record.Record) (record.Record, []dberrors.Issue, error) {
		return r, nil, nil
	})
	out, issues, err := v.Validate(record.Record{"a": 1.0})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 1.0, out["a"])
}
