// Package framework wires the configuration engine, the core components and
// the plugin lifecycle into one runnable bot service.
package framework

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/squidlabs/squidcore/components/cli"
	"github.com/squidlabs/squidcore/components/db"
	"github.com/squidlabs/squidcore/components/events"
	"github.com/squidlabs/squidcore/components/gateway"
	"github.com/squidlabs/squidcore/components/redisbus"
	"github.com/squidlabs/squidcore/config"
	"github.com/squidlabs/squidcore/internal/metrics"
	"github.com/squidlabs/squidcore/internal/telemetry"
	"github.com/squidlabs/squidcore/plugin"
)

// CoreRootName is the reserved plugin package root for built-in plugins.
const CoreRootName = "core"

// metricsNamespace prefixes every prometheus instrument.
const metricsNamespace = "squidcore"

// Framework is the long-lived bot service: configuration, core components
// and the plugin manager. It is the plugin.Host handed to every plugin.
type Framework struct {
	Settings *Settings

	cfg       *config.Manager
	logger    *zap.Logger
	database  *db.Database
	cliMgr    *cli.Manager
	bus       *events.Bus
	gw        gateway.Gateway
	redis     *redisbus.Bus
	plugins   *plugin.Manager
	collector *metrics.Collector
	otel      *telemetry.Providers
}

// New creates a Framework from the global manifest at manifestPath and the
// static plugin registry. Settings are resolved first so the logger and
// every component honor them.
func New(ctx context.Context, manifestPath string, registry *plugin.Registry) (*Framework, error) {
	// Settings resolve before the real logger exists; a throwaway manager
	// covers the bootstrap phase.
	boot := config.NewManager(manifestPath, nil)
	if err := boot.LoadGlobal(); err != nil {
		return nil, err
	}
	resolved, err := boot.ResolveSchema(ctx, SettingsSchema(), nil)
	if err != nil {
		return nil, fmt.Errorf("resolve framework settings: %w", err)
	}
	st, err := settingsFromResolved(resolved)
	if err != nil {
		return nil, fmt.Errorf("framework settings: %w", err)
	}

	logger := initLogger(st)
	logger.Info("Hi!", zap.String("project", st.Name))

	cfg := config.NewManager(manifestPath, logger)
	if err := cfg.LoadGlobal(); err != nil {
		return nil, err
	}

	var collector *metrics.Collector
	if st.MetricsEnabled {
		collector = metrics.NewCollector(metricsNamespace, nil, logger)
	}

	otel, err := telemetry.Init(telemetry.Config{
		Enabled:      st.TelemetryEnabled,
		OTLPEndpoint: st.TelemetryEndpoint,
		ServiceName:  st.Name,
		SampleRate:   st.TelemetrySampleRate,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	database := db.New(st.DatabaseURL, logger)
	// The KV configuration table migrates with everything else.
	if err := database.RegisterModel("github.com/squidlabs/squidcore/config", &config.KVEntry{}); err != nil {
		return nil, err
	}

	gw := gateway.NewClient(st.GatewayURL, st.GatewayToken, logger)
	cliMgr := cli.NewManager(gw, st.CLIChannels, st.CLIPrefix, logger)
	cliMgr.SetMetrics(collector)
	bus := events.NewBus(logger)
	bus.SetMetrics(collector)
	redisBus, err := redisbus.New(st.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("redis bus: %w", err)
	}

	f := &Framework{
		Settings:  st,
		cfg:       cfg,
		logger:    logger,
		database:  database,
		cliMgr:    cliMgr,
		bus:       bus,
		gw:        gw,
		redis:     redisBus,
		collector: collector,
		otel:      otel,
	}

	roots, err := f.packageRoots()
	if err != nil {
		return nil, err
	}
	plugin.RegisterBuiltinKinds()
	f.plugins = plugin.NewManager(f, registry, roots, logger, collector)

	logger.Info("framework initialized", zap.String("project", st.FriendlyName))
	return f, nil
}

// packageRoots builds the plugin scan roots: the reserved core root plus
// every custom package from settings.
func (f *Framework) packageRoots() ([]plugin.PackageRoot, error) {
	roots := []plugin.PackageRoot{{
		Name:   CoreRootName,
		Dir:    f.Settings.PackageCoreDir,
		Module: f.Settings.PackageCore,
	}}
	for name, spec := range f.Settings.Packages {
		if name == CoreRootName {
			return nil, fmt.Errorf("plugin package name %q is reserved", CoreRootName)
		}
		roots = append(roots, plugin.PackageRoot{Name: name, Dir: spec.Dir, Module: spec.Module})
	}
	return roots, nil
}

// =============================================================================
// plugin.Host
// =============================================================================

func (f *Framework) Config() *config.Manager  { return f.cfg }
func (f *Framework) DB() *db.Database         { return f.database }
func (f *Framework) CLI() *cli.Manager        { return f.cliMgr }
func (f *Framework) EventBus() *events.Bus    { return f.bus }
func (f *Framework) Gateway() gateway.Gateway { return f.gw }
func (f *Framework) Redis() *redisbus.Bus     { return f.redis }
func (f *Framework) Logger() *zap.Logger      { return f.logger }

// Plugins returns the plugin manager.
func (f *Framework) Plugins() *plugin.Manager { return f.plugins }

// Metrics returns the metrics collector (nil when metrics are disabled).
func (f *Framework) Metrics() *metrics.Collector { return f.collector }

// =============================================================================
// Lifecycle
// =============================================================================

// Start runs the full startup sequence and blocks serving the gateway and
// the message bus until ctx is canceled or a component fails. Teardown runs
// on the way out either way.
func (f *Framework) Start(ctx context.Context) error {
	f.logger.Info("Starting framework...")

	selected := f.Settings.Plugins
	if len(selected) == 0 {
		selected = []string{CoreRootName + ":*"}
	}

	if _, err := f.plugins.Discover(ctx); err != nil {
		return fmt.Errorf("plugin discovery: %w", err)
	}

	// Preload first so plugin database models register before migration.
	f.plugins.Preload(ctx, selected)

	if err := f.database.Init(ctx); err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	f.cfg.AttachDB(f.database.DB())
	if err := f.bus.Dispatch(ctx, "framework_core_initialized", nil); err != nil {
		f.logger.Warn("core initialized dispatch", zap.Error(err))
	}

	f.plugins.Load(ctx, selected)

	f.logger.Info("Starting gateway...", zap.String("project", f.Settings.FriendlyName))
	if err := f.bus.Dispatch(ctx, "framework_gateway_init", nil); err != nil {
		f.logger.Warn("gateway init dispatch", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.gw.Run(gctx) })
	g.Go(func() error { return f.redis.Run(gctx) })
	if f.Settings.MetricsEnabled {
		g.Go(func() error { return f.serveOps(gctx) })
	}
	err := g.Wait()

	f.logger.Info("Received exit signal. Shutting down...")
	f.Teardown(context.Background())

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Teardown unloads all plugins and closes every component. Safe to call
// after a partial startup.
func (f *Framework) Teardown(ctx context.Context) {
	f.logger.Info("Tearing down framework...")

	f.plugins.UnloadAll(ctx)

	if err := f.gw.Close(); err != nil {
		f.logger.Warn("gateway close", zap.Error(err))
	}
	if err := f.redis.Close(); err != nil {
		f.logger.Warn("redis close", zap.Error(err))
	}
	if err := f.bus.Dispatch(ctx, "framework_core_terminated", nil); err != nil {
		f.logger.Warn("core terminated dispatch", zap.Error(err))
	}
	if err := f.database.Close(); err != nil {
		f.logger.Warn("database close", zap.Error(err))
	}
	if err := f.otel.Shutdown(ctx); err != nil {
		f.logger.Warn("telemetry shutdown", zap.Error(err))
	}

	f.logger.Info("Framework shut down successfully.")
	_ = f.logger.Sync()
}

// Run starts the framework and blocks until SIGINT or SIGTERM.
func (f *Framework) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return f.Start(ctx)
}
