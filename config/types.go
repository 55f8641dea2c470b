package config

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Configuration sources
// =============================================================================

// Source identifies one place a configuration value may come from. The
// numeric value is the source's precedence: lower is consulted first.
type Source int

const (
	// SourceKVStore is the persistent key/value table (runtime-mutable).
	SourceKVStore Source = 1
	// SourceEnvironment is process environment variables.
	SourceEnvironment Source = 2
	// SourceManifestGlobal is the global framework manifest file.
	SourceManifestGlobal Source = 3
	// SourceManifestPlugin is the owning plugin's manifest file.
	SourceManifestPlugin Source = 4
	// SourceDefault is the option's hardcoded default value.
	SourceDefault Source = 5
)

// Precedence returns the source's rank; lower is checked first.
func (s Source) Precedence() int { return int(s) }

func (s Source) String() string {
	switch s {
	case SourceKVStore:
		return "KV_STORE"
	case SourceEnvironment:
		return "ENVIRONMENT"
	case SourceManifestGlobal:
		return "MANIFEST_GLOBAL"
	case SourceManifestPlugin:
		return "MANIFEST_PLUGIN"
	case SourceDefault:
		return "DEFAULT"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// AllSources returns every source in ascending precedence order.
func AllSources() []Source {
	return []Source{
		SourceKVStore,
		SourceEnvironment,
		SourceManifestGlobal,
		SourceManifestPlugin,
		SourceDefault,
	}
}

// =============================================================================
// Value types
// =============================================================================

// ValueType is the expected type of a resolved option value. TypeAny
// disables enforcement entirely.
type ValueType int

const (
	TypeAny ValueType = iota
	TypeString
	TypeBool
	TypeInt
	TypeFloat
	TypeList
	TypeMap
)

func (t ValueType) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// =============================================================================
// Required sentinel
// =============================================================================

type requiredSentinel struct{}

func (requiredSentinel) String() string { return "*Required" }

// Required marks an option's default as mandatory: when resolution reaches
// the DEFAULT source without a value, it fails with MissingRequiredError.
var Required = requiredSentinel{}

// =============================================================================
// Option
// =============================================================================

// Option describes one named configuration setting: its hierarchical name,
// default, candidate sources and the per-source lookup keys. Options are
// immutable after normalization.
type Option struct {
	// Name is the hierarchical path of the option, e.g. ["bot", "token"].
	Name []string
	// Default is the DEFAULT-source value, or the Required sentinel.
	Default any
	// Description documents the option for operators.
	Description string
	// Sources lists the candidate sources. Empty means all five. Sorted by
	// precedence during normalization.
	Sources []Source
	// SourceNames holds per-source lookup keys. Keys missing here are
	// derived from Name: dotted path for manifest sources, UPPER_SNAKE for
	// the environment, lowercase slash-joined for the KV store.
	SourceNames map[Source]string
	// Type is the enforced value type; TypeAny disables enforcement.
	Type ValueType
	// Coerce enables best-effort conversion when a source's raw value is
	// not already of Type. Without it a mismatching source is skipped.
	Coerce bool

	normalized bool
}

// normalize sorts sources by precedence and derives missing lookup keys.
// Safe to call more than once.
func (o *Option) normalize() {
	if o.normalized {
		return
	}
	if len(o.Sources) == 0 {
		o.Sources = AllSources()
	}
	sort.Slice(o.Sources, func(i, j int) bool {
		return o.Sources[i].Precedence() < o.Sources[j].Precedence()
	})
	if o.SourceNames == nil {
		o.SourceNames = make(map[Source]string, len(o.Sources))
	}
	for _, src := range o.Sources {
		if _, ok := o.SourceNames[src]; ok {
			continue
		}
		// Dots inside a single segment would break derived keys; flatten them.
		flat := make([]string, len(o.Name))
		for i, part := range o.Name {
			flat[i] = strings.ReplaceAll(part, ".", "_")
		}
		switch src {
		case SourceManifestGlobal, SourceManifestPlugin:
			// Manifest files retain the hierarchy.
			o.SourceNames[src] = strings.Join(o.Name, ".")
		case SourceEnvironment:
			o.SourceNames[src] = strings.ToUpper(strings.Join(flat, "_"))
		case SourceKVStore:
			for i, part := range flat {
				flat[i] = strings.ToLower(strings.ReplaceAll(part, "/", "_"))
			}
			o.SourceNames[src] = strings.Join(flat, "/")
		case SourceDefault:
			if o.Default == Required {
				o.SourceNames[src] = "*Required"
			} else {
				o.SourceNames[src] = "*Default"
			}
		}
	}
	o.normalized = true
}

// Path returns the option's dotted name.
func (o *Option) Path() string { return strings.Join(o.Name, ".") }

// SourceName returns the lookup key used for the given source.
func (o *Option) SourceName(src Source) string {
	o.normalize()
	return o.SourceNames[src]
}

// EffectiveSource returns the highest-precedence candidate source.
func (o *Option) EffectiveSource() Source {
	o.normalize()
	return o.Sources[0]
}

// SourcesFriendly renders the source chain for log and error messages,
// e.g. "ENVIRONMENT(BOT_TOKEN) > DEFAULT(*Required)".
func (o *Option) SourcesFriendly() string {
	o.normalize()
	parts := make([]string, len(o.Sources))
	for i, src := range o.Sources {
		parts[i] = fmt.Sprintf("%s(%s)", src, o.SourceNames[src])
	}
	return strings.Join(parts, " > ")
}

// =============================================================================
// Schema
// =============================================================================

// Schema is a named, flat collection of options describing one coherent
// settings group (framework-wide settings, or one plugin's settings).
type Schema struct {
	Name    string
	Options map[string]*Option
}

// Resolved holds a schema's resolved values, keyed by option field name.
type Resolved struct {
	Schema string
	values map[string]any
}

// Get returns the raw resolved value for a field (nil when absent).
func (r *Resolved) Get(field string) any { return r.values[field] }

// Has reports whether the field resolved to a non-nil value.
func (r *Resolved) Has(field string) bool { return r.values[field] != nil }

// String returns the field as a string, or "" when absent.
func (r *Resolved) String(field string) string {
	if v, ok := r.values[field].(string); ok {
		return v
	}
	return ""
}

// Bool returns the field as a bool, or false when absent.
func (r *Resolved) Bool(field string) bool {
	if v, ok := r.values[field].(bool); ok {
		return v
	}
	return false
}

// Int returns the field as an int, or 0 when absent.
func (r *Resolved) Int(field string) int {
	switch v := r.values[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the field as a float64, or 0 when absent.
func (r *Resolved) Float(field string) float64 {
	switch v := r.values[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// List returns the field as a generic list, or nil when absent.
func (r *Resolved) List(field string) []any {
	if v, ok := r.values[field].([]any); ok {
		return v
	}
	return nil
}

// StringSlice returns the field's list elements rendered as strings.
func (r *Resolved) StringSlice(field string) []string {
	list := r.List(field)
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

// Int64Slice returns the field's list elements as int64 values, dropping
// anything non-numeric.
func (r *Resolved) Int64Slice(field string) []int64 {
	list := r.List(field)
	if list == nil {
		return nil
	}
	out := make([]int64, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case int:
			out = append(out, int64(v))
		case int64:
			out = append(out, v)
		case float64:
			out = append(out, int64(v))
		}
	}
	return out
}

// StringMap returns the field as a map of strings, or nil when absent.
func (r *Resolved) StringMap(field string) map[string]string {
	m, ok := r.values[field].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
