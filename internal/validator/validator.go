// Package validator supplies the schema-validation collaborator used by
// the mutation kernel (spec.md §4.9): a small interface plus a
// declarative, struct-tag-free default implementation. ProseQL records are
// schema-less map[string]any rather than compile-time Go structs, so
// unlike the teacher's stretchr/testify assertions (used only in tests)
// there is no reflect-based struct tag walk here — Field is a plain value
// describing one dot-path, modeled on the declarative option structs the
// teacher builds throughout internal/storage (e.g. StorageOptions).
package validator

import (
	"fmt"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/record"
)

// Validator validates (and may coerce) a draft record before it commits.
// Implementations return the possibly-adjusted record, a list of issues
// (non-nil means validation failed), and a non-nil error only for
// validator-internal failures unrelated to the data itself.
type Validator interface {
	Validate(draft record.Record) (record.Record, []dberrors.Issue, error)
}

// Func adapts a plain function to Validator.
type Func func(record.Record) (record.Record, []dberrors.Issue, error)

func (f Func) Validate(draft record.Record) (record.Record, []dberrors.Issue, error) {
	return f(draft)
}

// Check is a caller-supplied extra rule over an already type-checked
// field value; returning ok=false fails validation with message.
type Check func(value any) (message string, ok bool)

// Field declares one validated path of a schema.
type Field struct {
	Path     string
	Type     string // "string", "number", "boolean", "array", "object", "" (any)
	Required bool
	Default  any
	Checks   []Check
}

// Schema is the default Validator: an ordered list of Field declarations.
type Schema struct {
	Fields []Field
}

func New(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

func (s *Schema) Validate(draft record.Record) (record.Record, []dberrors.Issue, error) {
	out := draft.Clone()
	var issues []dberrors.Issue

	for _, f := range s.Fields {
		v, present := record.Get(out, f.Path)
		if !present || v == nil {
			if f.Default != nil {
				record.Set(out, f.Path, f.Default)
				v, present = record.Get(out, f.Path)
			}
		}
		if !present || v == nil {
			if f.Required {
				issues = append(issues, dberrors.Issue{
					Field:    f.Path,
					Message:  "required field is missing",
					Expected: "present",
					Received: "missing",
				})
			}
			continue
		}
		if f.Type != "" {
			if got := typeOf(v); got != f.Type {
				issues = append(issues, dberrors.Issue{
					Field:    f.Path,
					Message:  fmt.Sprintf("expected type %s, got %s", f.Type, got),
					Expected: f.Type,
					Received: got,
				})
				continue
			}
		}
		for _, chk := range f.Checks {
			if msg, ok := chk(v); !ok {
				issues = append(issues, dberrors.Issue{
					Field:   f.Path,
					Message: msg,
				})
			}
		}
	}
	return out, issues, nil
}

func typeOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64, float32:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
