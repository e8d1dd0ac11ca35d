package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/pkg/domain"
	"github.com/weftworks/weft/pkg/registry"
)

func pattern(id string) *domain.Pattern {
	return &domain.Pattern{
		ID: id,
		Reactions: []*domain.Reaction{
			{Name: "start", Condition: &domain.Condition{Kind: domain.KindFilter, Expr: "event.type == 'x'"}},
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := registry.New()

	require.NoError(t, reg.Register(pattern("a")))
	require.NoError(t, reg.Register(pattern("b")))
	assert.Equal(t, 2, reg.Len())

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(pattern("a")))
	assert.Error(t, reg.Register(pattern("a")))
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg := registry.New()
	assert.Error(t, reg.Register(&domain.Pattern{ID: "broken"}))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_AllPreservesOrder(t *testing.T) {
	reg := registry.New()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, reg.Register(pattern(id)))
	}

	var ids []string
	for _, p := range reg.All() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRegistry_Reset(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(pattern("a")))

	replacement := pattern("a")
	replacement.Name = "revised"
	require.NoError(t, reg.Reset(replacement))

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "revised", got.Name)

	// Reset never introduces new patterns.
	assert.Error(t, reg.Reset(pattern("new")))
	// And never accepts invalid ones.
	assert.Error(t, reg.Reset(&domain.Pattern{ID: "a"}))
}
