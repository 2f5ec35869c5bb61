package module_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statweave/statweave/internal/discovery"
	"github.com/statweave/statweave/internal/module"
)

type stubModule struct {
	id string
}

func (s *stubModule) Descriptor() module.Descriptor {
	return module.Descriptor{ID: s.id, Description: "stub " + s.id}
}

func (s *stubModule) Extract(_ []discovery.CandidateFile) (*module.Result, error) {
	return &module.Result{}, nil
}

func newTestRegistry(t *testing.T, ids ...string) *module.Registry {
	t.Helper()

	registry := module.NewRegistry()

	for _, id := range ids {
		mod := &stubModule{id: id}
		require.NoError(t, registry.Register(mod.Descriptor(), func() module.Module { return mod }))
	}

	return registry
}

func TestRegistry_DuplicateID(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "alpha")
	mod := &stubModule{id: "alpha"}

	err := registry.Register(mod.Descriptor(), func() module.Module { return mod })
	require.ErrorIs(t, err, module.ErrDuplicateModuleID)
}

func TestRegistry_AllPreservesRegistrationOrder(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "beta", "alpha", "gamma")

	descriptors := registry.All()
	require.Len(t, descriptors, 3)
	assert.Equal(t, "beta", descriptors[0].ID)
	assert.Equal(t, "alpha", descriptors[1].ID)
	assert.Equal(t, "gamma", descriptors[2].ID)
}

func resolveIDs(t *testing.T, registry *module.Registry, include, exclude []string) []string {
	t.Helper()

	mods, err := registry.Resolve(include, exclude)
	require.NoError(t, err)

	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = m.Descriptor().ID
	}

	return ids
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    []string
	}{
		{name: "empty include selects all", want: []string{"kv", "tsv", "kvx"}},
		{name: "explicit include", include: []string{"tsv"}, want: []string{"tsv"}},
		{name: "glob include", include: []string{"kv*"}, want: []string{"kv", "kvx"}},
		{name: "exclude wins", include: []string{"kv*"}, exclude: []string{"kvx"}, want: []string{"kv"}},
		{name: "selection order does not reorder", include: []string{"kvx", "kv"}, want: []string{"kv", "kvx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			registry := newTestRegistry(t, "kv", "tsv", "kvx")
			assert.Equal(t, tt.want, resolveIDs(t, registry, tt.include, tt.exclude))
		})
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "kv")

	_, err := registry.Resolve([]string{"missing"}, nil)
	require.ErrorIs(t, err, module.ErrUnknownModuleID)

	_, err = registry.Resolve([]string{"zz*"}, nil)
	require.ErrorIs(t, err, module.ErrUnknownModuleID)
}

func TestRegistry_ResolveBadGlob(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, "kv")

	_, err := registry.Resolve([]string{"[unclosed"}, nil)
	require.ErrorIs(t, err, module.ErrInvalidModuleGlob)
}

func TestResultSampleIDs_Sorted(t *testing.T) {
	t.Parallel()

	res := &module.Result{
		GeneralStats: map[string]map[string]float64{
			"zeta": {"m": 1},
			"abel": {"m": 2},
			"mira": {"m": 3},
		},
	}

	assert.Equal(t, []string{"abel", "mira", "zeta"}, res.SampleIDs())
}
