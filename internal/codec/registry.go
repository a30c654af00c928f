// Package codec is the serializer registry collaborator of spec.md §6:
// serialize/deserialize dispatched by file extension, with JSON, YAML,
// TOML, and the in-house "prose" line-oriented format as built-in codecs.
package codec

import (
	"github.com/steveyegge/proseql/internal/dberrors"
)

// Codec is one serialization format.
type Codec interface {
	Name() string
	Extensions() []string
	Encode(value any, opts map[string]any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Registry dispatches serialize/deserialize calls to a codec by file
// extension or explicit format name.
type Registry struct {
	byExt  map[string]Codec
	byName map[string]Codec
}

// NewRegistry returns a registry pre-populated with json, yaml, toml, and
// prose.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]Codec{}, byName: map[string]Codec{}}
	for _, c := range []Codec{JSON{}, YAML{}, TOML{}, Prose{}} {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a codec, indexing it by name and every
// extension it claims.
func (r *Registry) Register(c Codec) {
	r.byName[c.Name()] = c
	for _, ext := range c.Extensions() {
		r.byExt[ext] = c
	}
}

// ForExtension looks up a codec by file extension (without the leading dot).
func (r *Registry) ForExtension(ext string) (Codec, error) {
	if c, ok := r.byExt[ext]; ok {
		return c, nil
	}
	return nil, &dberrors.UnsupportedFormatError{Extension: ext}
}

// ForFormat looks up a codec by registered name (an explicit format
// override, per spec.md §4.12).
func (r *Registry) ForFormat(name string) (Codec, error) {
	if c, ok := r.byName[name]; ok {
		return c, nil
	}
	return nil, &dberrors.UnsupportedFormatError{Extension: name}
}

// Serialize encodes value with the codec registered for ext (or format, if
// non-empty, which takes precedence).
func (r *Registry) Serialize(value any, ext, format string, opts map[string]any) ([]byte, error) {
	c, err := r.resolve(ext, format)
	if err != nil {
		return nil, err
	}
	data, err := c.Encode(value, opts)
	if err != nil {
		return nil, &dberrors.SerializationError{Format: c.Name(), Cause: err}
	}
	return data, nil
}

// Deserialize decodes data with the codec registered for ext (or format).
func (r *Registry) Deserialize(data []byte, ext, format string) (any, error) {
	c, err := r.resolve(ext, format)
	if err != nil {
		return nil, err
	}
	v, err := c.Decode(data)
	if err != nil {
		return nil, &dberrors.SerializationError{Format: c.Name(), Cause: err}
	}
	return v, nil
}

func (r *Registry) resolve(ext, format string) (Codec, error) {
	if format != "" {
		return r.ForFormat(format)
	}
	return r.ForExtension(ext)
}
