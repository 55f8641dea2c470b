package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is a parsed manifest file: nested string-keyed tables with
// string/number/bool/list leaf values.
type Manifest map[string]any

// ReadManifest parses the YAML manifest at path. A missing file is reported
// as ErrManifestNotFound so callers can distinguish "not a plugin" from a
// malformed manifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest bytes.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m == nil {
		m = Manifest{}
	}
	return m, nil
}

// Get walks nested tables along path and returns the value found there.
// The second return is false when any segment is missing.
func (m Manifest) Get(path ...string) (any, bool) {
	var current any = map[string]any(m)
	for _, key := range path {
		table, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = table[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetString returns the string at path, or def when absent or non-string.
func (m Manifest) GetString(def string, path ...string) string {
	if v, ok := m.Get(path...); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetStringSlice returns the list of strings at path, or nil.
func (m Manifest) GetStringSlice(path ...string) []string {
	v, ok := m.Get(path...)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
