package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ReadManifest ---

func TestReadManifest_Missing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestReadManifest_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugin: [unclosed"), 0o644))

	_, err := ReadManifest(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrManifestNotFound)
}

func TestReadManifest_Nested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framework.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project:
  name: squidbot
  friendly_name: Squid Bot
plugins:
  plugins:
    - core:dms
    - core:bot_events
gateway:
  cli:
    channels: ["123", "456"]
`), 0o644))

	m, err := ReadManifest(path)
	require.NoError(t, err)

	name, ok := m.Get("project", "name")
	require.True(t, ok)
	assert.Equal(t, "squidbot", name)

	_, ok = m.Get("project", "missing")
	assert.False(t, ok)

	_, ok = m.Get("project", "name", "deeper")
	assert.False(t, ok, "walking through a leaf must fail")
}

func TestParseManifest_Empty(t *testing.T) {
	m, err := ParseManifest(nil)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, ok := m.Get("anything")
	assert.False(t, ok)
}

// --- Typed accessors ---

func TestManifest_GetString(t *testing.T) {
	m := Manifest{"a": map[string]any{"b": "value", "n": 7}}

	assert.Equal(t, "value", m.GetString("def", "a", "b"))
	assert.Equal(t, "def", m.GetString("def", "a", "missing"))
	assert.Equal(t, "def", m.GetString("def", "a", "n"), "non-string falls back to default")
}

func TestManifest_GetStringSlice(t *testing.T) {
	m := Manifest{
		"plugins": map[string]any{
			"plugins": []any{"core:dms", "custom:tools", 42},
		},
		"scalar": "x",
	}

	assert.Equal(t, []string{"core:dms", "custom:tools"}, m.GetStringSlice("plugins", "plugins"))
	assert.Nil(t, m.GetStringSlice("missing"))
	assert.Nil(t, m.GetStringSlice("scalar"))
}
