package plugin_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/codec"
	"github.com/steveyegge/proseql/internal/idgen"
	"github.com/steveyegge/proseql/internal/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryInstallsOperators(t *testing.T) {
	p := plugin.Plugin{
		Name: "geo",
		Operators: map[string]plugin.Operator{
			"$near": func(fieldValue, operand any) (bool, error) { return true, nil },
		},
	}
	r, err := plugin.NewRegistry(codec.NewRegistry(), idgen.NewRegistry(), p)
	require.NoError(t, err)

	op, ok := r.Operator("$near")
	require.True(t, ok)
	matched, err := op(nil, nil)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestNewRegistryRejectsDuplicateOperatorNames(t *testing.T) {
	op := func(fieldValue, operand any) (bool, error) { return false, nil }
	a := plugin.Plugin{Name: "a", Operators: map[string]plugin.Operator{"$dup": op}}
	b := plugin.Plugin{Name: "b", Operators: map[string]plugin.Operator{"$dup": op}}

	_, err := plugin.NewRegistry(codec.NewRegistry(), idgen.NewRegistry(), a, b)
	assert.Error(t, err)
}

func TestNewRegistryRegistersCodecAndIDGenerator(t *testing.T) {
	codecs := codec.NewRegistry()
	idgens := idgen.NewRegistry()
	hashGen := &idgen.HashGenerator{}
	p := plugin.Plugin{Name: "hashid", IDGenerator: hashGen}

	_, err := plugin.NewRegistry(codecs, idgens, p)
	require.NoError(t, err)
	assert.True(t, idgens.Has("hashid"))
}

func TestNamesReturnsSortedPluginNames(t *testing.T) {
	r, err := plugin.NewRegistry(codec.NewRegistry(), idgen.NewRegistry(),
		plugin.Plugin{Name: "zeta"},
		plugin.Plugin{Name: "alpha"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}

func TestGlobalHooksReturnsInstallOrder(t *testing.T) {
	var order []string
	hookA := func(kind, collection string, before, after map[string]any) error {
		order = append(order, "a")
		return nil
	}
	hookB := func(kind, collection string, before, after map[string]any) error {
		order = append(order, "b")
		return nil
	}
	r, err := plugin.NewRegistry(codec.NewRegistry(), idgen.NewRegistry(),
		plugin.Plugin{Name: "a", Hooks: []plugin.GlobalHook{hookA}},
		plugin.Plugin{Name: "b", Hooks: []plugin.GlobalHook{hookB}},
	)
	require.NoError(t, err)
	for _, h := range r.GlobalHooks() {
		require.NoError(t, h("afterCreate", "notes", nil, nil))
	}
	assert.Equal(t, []string{"a", "b"}, order)
}
