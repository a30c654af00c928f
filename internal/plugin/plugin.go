// Package plugin is the extension registry of spec.md §4.14: a plugin
// contributes custom filter operators, codecs, ID generators, and
// collection-agnostic hooks, gathered at database construction time.
// Modeled on the teacher's internal/storage/factory, which registers
// named backend constructors into one lookup table and validates the
// chosen name at open-time rather than at every call site.
package plugin

import (
	"fmt"
	"sort"

	"github.com/steveyegge/proseql/internal/codec"
	"github.com/steveyegge/proseql/internal/idgen"
)

// Operator is a custom $-operator a plugin contributes; operand is the
// value supplied in the query, fieldValue is the record's current value at
// that path. Registry.Operator looks one up by name; the filter evaluator
// does not consult the registry.
type Operator func(fieldValue, operand any) (bool, error)

// GlobalHook is a collection-agnostic hook a plugin contributes. kind is
// "beforeCreate", "afterCreate", "beforeUpdate", "afterUpdate",
// "beforeDelete" or "afterDelete". Registry.GlobalHooks returns them in
// install order; the mutation kernel does not call them.
type GlobalHook func(kind string, collection string, before, after map[string]any) error

// Plugin is the unit of registration. A plugin may leave any field empty.
type Plugin struct {
	Name        string
	Operators   map[string]Operator
	Codecs      []codec.Codec
	IDGenerator idgen.Generator
	Hooks       []GlobalHook
}

// Registry aggregates every installed plugin's contributions.
type Registry struct {
	plugins   []Plugin
	operators map[string]Operator
	hooks     []GlobalHook
}

// NewRegistry installs plugins in order, erroring if two plugins declare
// the same custom operator name.
func NewRegistry(codecs *codec.Registry, idgens *idgen.Registry, plugins ...Plugin) (*Registry, error) {
	r := &Registry{operators: make(map[string]Operator)}
	for _, p := range plugins {
		if err := r.install(p, codecs, idgens); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) install(p Plugin, codecs *codec.Registry, idgens *idgen.Registry) error {
	for name, op := range p.Operators {
		if _, exists := r.operators[name]; exists {
			return fmt.Errorf("plugin: operator %q already registered", name)
		}
		r.operators[name] = op
	}
	for _, c := range p.Codecs {
		codecs.Register(c)
	}
	if p.IDGenerator != nil {
		idgens.Register(p.Name, p.IDGenerator)
	}
	r.hooks = append(r.hooks, p.Hooks...)
	r.plugins = append(r.plugins, p)
	return nil
}

// Operator looks up a custom filter operator by its "$"-prefixed name.
func (r *Registry) Operator(name string) (Operator, bool) {
	op, ok := r.operators[name]
	return op, ok
}

// GlobalHooks returns every plugin-contributed hook, in install order.
func (r *Registry) GlobalHooks() []GlobalHook {
	return r.hooks
}

// Names lists installed plugin names, sorted for deterministic reporting.
func (r *Registry) Names() []string {
	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}
