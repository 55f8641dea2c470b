package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopInstance struct{}

func (nopInstance) Load(ctx context.Context) error   { return nil }
func (nopInstance) Unload(ctx context.Context) error { return nil }

func nopConstructor(host Host) Instance { return nopInstance{} }

// --- Registry ---

func TestRegistry_AddAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("example.com/bot/plugins/dms", Registration{New: nopConstructor}))

	reg, ok := r.Lookup("example.com/bot/plugins/dms", "Plugin")
	require.True(t, ok)
	assert.Equal(t, DefaultSymbol, reg.Symbol)

	// Empty symbol falls back to the default.
	_, ok = r.Lookup("example.com/bot/plugins/dms", "")
	assert.True(t, ok)

	_, ok = r.Lookup("example.com/bot/plugins/dms", "Other")
	assert.False(t, ok)
	_, ok = r.Lookup("example.com/bot/plugins/unknown", "Plugin")
	assert.False(t, ok)
}

func TestRegistry_DistinctSymbolsSamePath(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("example.com/p", Registration{New: nopConstructor}))
	require.NoError(t, r.Add("example.com/p", Registration{Symbol: "Alt", New: nopConstructor}))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add("example.com/p", Registration{New: nopConstructor}))
	err := r.Add("example.com/p", Registration{New: nopConstructor})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_NilConstructorRejected(t *testing.T) {
	r := NewRegistry()
	err := r.Add("example.com/p", Registration{})
	require.Error(t, err)
}

func TestRegistry_MustAddPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry()
	r.MustAdd("example.com/p", Registration{New: nopConstructor})
	assert.Panics(t, func() {
		r.MustAdd("example.com/p", Registration{New: nopConstructor})
	})
}
