package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/squidlabs/squidcore/config"
	"github.com/squidlabs/squidcore/internal/metrics"
)

// PackageRoot is one named location scanned for plugins: a filesystem
// directory whose immediate subdirectories may carry plugin manifests, and
// the import-path prefix constructor registrations are keyed under.
type PackageRoot struct {
	Name   string
	Dir    string
	Module string
}

// Manager owns the Plugin records and sequences discovery and the
// lifecycle state machine.
//
// The manager is driven from the single startup/shutdown sequence; it is
// the sole mutator of record state and takes no locks.
type Manager struct {
	host     Host
	registry *Registry
	roots    []PackageRoot
	logger   *zap.Logger
	metrics  *metrics.Collector

	plugins map[string]*Plugin
	order   []string // discovery order
}

// NewManager creates a plugin manager scanning the given roots. The
// metrics collector may be nil.
func NewManager(host Host, registry *Registry, roots []PackageRoot, logger *zap.Logger, collector *metrics.Collector) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := make([]string, len(roots))
	for i, root := range roots {
		names[i] = root.Name
	}
	m := &Manager{
		host:     host,
		registry: registry,
		roots:    roots,
		logger:   logger.With(zap.String("component", "plugin_manager")),
		metrics:  collector,
		plugins:  make(map[string]*Plugin),
	}
	m.logger.Info("plugin manager initialized", zap.Strings("roots", names))
	return m
}

// =============================================================================
// Discovery
// =============================================================================

// Discover scans every package root for plugin manifests and refreshes the
// record table. Re-running overwrites records of the same name, so the scan
// is idempotent. A plugin with a broken manifest or a missing constructor
// registration is logged and skipped; an unreadable root aborts the scan.
func (m *Manager) Discover(ctx context.Context) ([]*Plugin, error) {
	var discovered []*Plugin
	for _, root := range m.roots {
		entries, err := os.ReadDir(root.Dir)
		if err != nil {
			return nil, fmt.Errorf("scan package root %s (%s): %w", root.Name, root.Dir, err)
		}
		for _, entry := range entries {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root.Dir, entry.Name())
			rec, err := m.readPlugin(root, entry.Name(), dir)
			if err != nil {
				if errors.Is(err, config.ErrManifestNotFound) {
					continue // not a plugin directory
				}
				m.logger.Error("skipping plugin directory",
					zap.String("root", root.Name),
					zap.String("dir", dir),
					zap.Error(err),
				)
				continue
			}
			m.logger.Info("discovered plugin",
				zap.String("plugin", rec.Name),
				zap.String("root", root.Name),
			)
			discovered = append(discovered, rec)
		}
	}

	for _, rec := range discovered {
		if _, exists := m.plugins[rec.Name]; !exists {
			m.order = append(m.order, rec.Name)
		}
		m.plugins[rec.Name] = rec
	}
	m.metrics.SetDiscovered(len(m.plugins))
	m.checkDependencies()
	return discovered, nil
}

// readPlugin builds one Plugin record from a candidate directory.
func (m *Manager) readPlugin(root PackageRoot, dirName, dir string) (*Plugin, error) {
	manifestPath := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", config.ErrManifestNotFound, manifestPath)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	raw, err := config.ParseManifest(data)
	if err != nil {
		return nil, err
	}
	mf, err := parseManifestFile(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if mf.Plugin.Name == "" {
		return nil, fmt.Errorf("manifest %s has no plugin.name", manifestPath)
	}

	modulePath := root.Module + "/" + dirName
	symbol := mf.Plugin.Class
	if symbol == "" {
		symbol = DefaultSymbol
	}
	reg, ok := m.registry.Lookup(modulePath, symbol)
	if !ok {
		return nil, fmt.Errorf("no constructor registered for %s (%s)", modulePath, symbol)
	}

	return &Plugin{
		Name:         root.Name + ":" + sanitizeName(mf.Plugin.Name),
		Description:  mf.Plugin.Description,
		ModulePath:   modulePath,
		OSPath:       dir,
		Manifest:     raw,
		Registration: reg,
		State:        StateUnloaded,
		DBModels:     mf.DB.Models,
		Dependencies: mf.Dependencies.Plugins,
	}, nil
}

// checkDependencies warns about declared dependencies that are not among
// the discovered plugins. Informational only; nothing blocks on it.
func (m *Manager) checkDependencies() {
	for _, rec := range m.plugins {
		for _, dep := range rec.Dependencies {
			if _, ok := m.plugins[dep]; !ok {
				m.logger.Warn("plugin declares an undiscovered dependency",
					zap.String("plugin", rec.Name),
					zap.String("dependency", dep),
				)
			}
		}
	}
}

// Get returns the record for an exact plugin name.
func (m *Manager) Get(name string) (*Plugin, bool) {
	rec, ok := m.plugins[name]
	return rec, ok
}

// Plugins returns all records in discovery order.
func (m *Manager) Plugins() []*Plugin {
	out := make([]*Plugin, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.plugins[name])
	}
	return out
}

// Instance returns the live instance for a plugin name, if instantiated.
func (m *Manager) Instance(name string) (Instance, bool) {
	rec, ok := m.plugins[name]
	if !ok || rec.Instance == nil {
		return nil, false
	}
	return rec.Instance, true
}

// Select expands a name query into records: "root:*" selects every
// discovered plugin under that root, other entries are exact names. Unknown
// exact names are logged and dropped.
func (m *Manager) Select(names []string) []*Plugin {
	remaining := append([]string(nil), names...)
	var found []*Plugin

	for _, root := range m.roots {
		wildcard := root.Name + ":*"
		idx := -1
		for i, name := range remaining {
			if name == wildcard {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		for _, name := range m.order {
			if strings.HasPrefix(name, root.Name+":") {
				found = append(found, m.plugins[name])
			}
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	for _, name := range remaining {
		if rec, ok := m.plugins[name]; ok {
			found = append(found, rec)
		} else {
			m.logger.Warn("plugin not found", zap.String("plugin", name))
		}
	}
	return found
}

// =============================================================================
// Lifecycle
// =============================================================================

// PreloadOne instantiates a plugin, registers its declared database models,
// applies capability registration and runs the optional preload hook.
// Failures put the plugin into ERROR and are not propagated; siblings
// continue.
func (m *Manager) PreloadOne(ctx context.Context, rec *Plugin) {
	if rec.State != StateUnloaded {
		m.logger.Warn("plugin not in unloaded state, skipping preload",
			zap.String("plugin", rec.Name),
			zap.String("state", string(rec.State)),
		)
		return
	}

	m.logger.Info("pre-loading plugin", zap.String("plugin", rec.Name))
	start := time.Now()

	err := func() error {
		rec.Instance = rec.Registration.New(m.host)
		if ra, ok := rec.Instance.(recordAware); ok {
			ra.SetRecord(rec)
		}

		for _, modelPath := range rec.DBModels {
			models, ok := rec.Registration.Models[modelPath]
			if !ok {
				return fmt.Errorf("manifest declares db model module %q but the registration provides none", modelPath)
			}
			full := rec.ModulePath + "/" + modelPath
			if err := m.host.DB().RegisterModel(full, models...); err != nil {
				return err
			}
		}

		if err := Apply(ctx, m.host, rec, rec.Instance); err != nil {
			return err
		}
		for _, desc := range collectDescriptors(rec.Instance) {
			m.metrics.RecordCapability(desc.Kind())
		}

		if pre, ok := rec.Instance.(Preloader); ok {
			if err := pre.Preload(ctx); err != nil {
				return fmt.Errorf("preload hook: %w", err)
			}
		}
		return nil
	}()

	if err != nil {
		rec.State = StateError
		m.metrics.RecordTransition(rec.Name, string(StateError))
		m.logger.Error("error pre-loading plugin",
			zap.String("plugin", rec.Name),
			zap.Error(err),
		)
		return
	}

	rec.State = StatePreLoaded
	m.metrics.RecordTransition(rec.Name, string(StatePreLoaded))
	m.metrics.ObserveLifecycle("preload", time.Since(start))
	m.logger.Debug("plugin pre-loaded", zap.String("plugin", rec.Name))
}

// LoadOne runs a pre-loaded plugin's load hook.
func (m *Manager) LoadOne(ctx context.Context, rec *Plugin) {
	if rec.State != StatePreLoaded {
		m.logger.Warn("plugin not in pre-loaded state, skipping load",
			zap.String("plugin", rec.Name),
			zap.String("state", string(rec.State)),
		)
		return
	}

	m.logger.Info("loading plugin", zap.String("plugin", rec.Name))
	start := time.Now()

	if err := rec.Instance.Load(ctx); err != nil {
		rec.State = StateError
		m.metrics.RecordTransition(rec.Name, string(StateError))
		m.logger.Error("error loading plugin",
			zap.String("plugin", rec.Name),
			zap.Error(err),
		)
		return
	}

	rec.State = StateLoaded
	m.metrics.RecordTransition(rec.Name, string(StateLoaded))
	m.metrics.ObserveLifecycle("load", time.Since(start))
	m.logger.Debug("plugin loaded", zap.String("plugin", rec.Name))
}

// UnloadOne runs a loaded plugin's unload hook. The record survives as
// UNLOADED, available for a later re-load.
func (m *Manager) UnloadOne(ctx context.Context, rec *Plugin) {
	if rec.State != StateLoaded {
		m.logger.Warn("plugin not in loaded state, skipping unload",
			zap.String("plugin", rec.Name),
			zap.String("state", string(rec.State)),
		)
		return
	}

	m.logger.Info("unloading plugin", zap.String("plugin", rec.Name))
	start := time.Now()

	if err := rec.Instance.Unload(ctx); err != nil {
		rec.State = StateError
		m.metrics.RecordTransition(rec.Name, string(StateError))
		m.logger.Error("error unloading plugin",
			zap.String("plugin", rec.Name),
			zap.Error(err),
		)
		return
	}

	rec.State = StateUnloaded
	m.metrics.RecordTransition(rec.Name, string(StateUnloaded))
	m.metrics.ObserveLifecycle("unload", time.Since(start))
	m.logger.Debug("plugin unloaded", zap.String("plugin", rec.Name))
}

// Preload pre-loads the selector expansion of names, sequentially,
// continuing past individual failures.
func (m *Manager) Preload(ctx context.Context, names []string) {
	m.logger.Debug("pre-loading plugins", zap.Strings("query", names))
	for _, rec := range m.Select(names) {
		m.PreloadOne(ctx, rec)
	}
}

// Load loads the selector expansion of names.
func (m *Manager) Load(ctx context.Context, names []string) {
	m.logger.Debug("loading plugins", zap.Strings("query", names))
	for _, rec := range m.Select(names) {
		m.LoadOne(ctx, rec)
	}
}

// UnloadAll unloads every plugin currently in LOADED state, in discovery
// order.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.logger.Debug("unloading all plugins")
	for _, name := range m.order {
		rec := m.plugins[name]
		if rec.State == StateLoaded {
			m.UnloadOne(ctx, rec)
		}
	}
}
