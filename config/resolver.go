package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PluginContext exposes a plugin's own manifest to MANIFEST_PLUGIN lookups
// without coupling this package to the plugin registry.
type PluginContext interface {
	// ManifestLookup walks the plugin's manifest along path.
	ManifestLookup(path ...string) (any, bool)
}

// Manager resolves configuration options against their sources in
// precedence order. It caches the parsed global manifest and, once a
// database is attached, serves KV_STORE lookups from the kv_store table.
//
// The manager is driven from the single startup/shutdown sequence and takes
// no locks; the lifecycle orchestrator is its only concurrent caller.
type Manager struct {
	globalPath string
	global     Manifest
	db         *gorm.DB
	logger     *zap.Logger
}

// NewManager creates a Manager reading the global manifest at globalPath.
func NewManager(globalPath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		globalPath: globalPath,
		logger:     logger.With(zap.String("component", "config")),
	}
}

// AttachDB wires the database used by the KV_STORE source.
func (m *Manager) AttachDB(db *gorm.DB) {
	m.logger.Info("attaching database to config manager")
	m.db = db
}

// LoadGlobal reads and caches the global manifest. A missing or malformed
// global manifest is fatal at startup; every MANIFEST_GLOBAL lookup depends
// on it.
func (m *Manager) LoadGlobal() error {
	manifest, err := ReadManifest(m.globalPath)
	if err != nil {
		return fmt.Errorf("global manifest: %w", err)
	}
	m.global = manifest
	return nil
}

// Global returns the cached global manifest (nil before LoadGlobal).
func (m *Manager) Global() Manifest { return m.global }

// Resolve walks the option's sources in ascending precedence order and
// returns the first non-absent, type-acceptable value. A source whose value
// fails type enforcement is skipped, not fatal; only a Required default
// raises. When no source yields a value and the default is not Required,
// Resolve returns nil with no error.
func (m *Manager) Resolve(ctx context.Context, opt *Option, plugin PluginContext) (any, error) {
	opt.normalize()
	for _, src := range opt.Sources {
		raw, ok, err := m.lookup(ctx, opt, src, plugin)
		if err != nil {
			var missing *MissingRequiredError
			if errors.As(err, &missing) {
				return nil, err
			}
			m.logger.Debug("source lookup failed",
				zap.String("option", opt.Path()),
				zap.Stringer("source", src),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			continue
		}
		value, err := m.enforce(raw, opt)
		if err != nil {
			m.logger.Warn("type enforcement failed, skipping source",
				zap.String("option", opt.Path()),
				zap.Stringer("source", src),
				zap.Error(err),
			)
			continue
		}
		m.logger.Debug("option resolved",
			zap.String("option", opt.Path()),
			zap.Stringer("source", src),
			zap.Any("value", value),
		)
		return value, nil
	}
	return nil, nil
}

// ResolveSchema resolves every option in the schema and returns the typed
// result bag. The first MissingRequiredError aborts the whole schema.
func (m *Manager) ResolveSchema(ctx context.Context, schema *Schema, plugin PluginContext) (*Resolved, error) {
	m.logger.Info("resolving config schema", zap.String("schema", schema.Name))
	values := make(map[string]any, len(schema.Options))
	for field, opt := range schema.Options {
		value, err := m.Resolve(ctx, opt, plugin)
		if err != nil {
			return nil, fmt.Errorf("schema %s field %s: %w", schema.Name, field, err)
		}
		values[field] = value
	}
	return &Resolved{Schema: schema.Name, values: values}, nil
}

// lookup fetches the raw value for one source. The bool return is false
// when the source has no value for this option.
func (m *Manager) lookup(ctx context.Context, opt *Option, src Source, plugin PluginContext) (any, bool, error) {
	name := opt.SourceNames[src]
	switch src {
	case SourceEnvironment:
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			return nil, false, nil
		}
		return value, true, nil

	case SourceManifestGlobal:
		if m.global == nil {
			if err := m.LoadGlobal(); err != nil {
				return nil, false, err
			}
		}
		value, ok := m.global.Get(strings.Split(name, ".")...)
		return value, ok, nil

	case SourceManifestPlugin:
		if plugin == nil {
			return nil, false, nil
		}
		value, ok := plugin.ManifestLookup(strings.Split(name, ".")...)
		return value, ok, nil

	case SourceKVStore:
		return m.kvGet(ctx, name)

	case SourceDefault:
		if opt.Default == Required {
			return nil, false, &MissingRequiredError{
				Option:  opt.Path(),
				Sources: opt.SourcesFriendly(),
			}
		}
		if opt.Default == nil {
			return nil, false, nil
		}
		return opt.Default, true, nil
	}
	return nil, false, fmt.Errorf("unknown source %s", src)
}

// enforce applies the option's type policy to a raw value.
func (m *Manager) enforce(value any, opt *Option) (any, error) {
	if opt.Type == TypeAny || isOfType(value, opt.Type) {
		return value, nil
	}
	if !opt.Coerce {
		return nil, &CoercionError{Value: value, Target: opt.Type}
	}
	return Coerce(value, opt.Type)
}
