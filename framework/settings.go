package framework

import (
	"fmt"

	"github.com/squidlabs/squidcore/config"
)

// PackageSpec locates one custom plugin package: the directory scanned for
// manifests and the import-path prefix its constructors register under.
type PackageSpec struct {
	Dir    string
	Module string
}

// Settings is the resolved framework configuration.
type Settings struct {
	// General
	Name         string
	FriendlyName string

	// Gateway
	GatewayURL    string
	GatewayToken  string
	CommandPrefix string

	// Logging
	LogLevel     string
	DebugMode    bool
	LogFile      string
	LogToConsole bool

	// Plugins
	Plugins        []string
	Packages       map[string]PackageSpec
	PackageCore    string
	PackageCoreDir string

	// Storage
	DatabaseURL string
	RedisURL    string

	// CLI
	CLIPrefix   string
	CLIChannels []string

	// Filesystem
	DataDir string

	// Observability
	MetricsEnabled      bool
	MetricsAddr         string
	TelemetryEnabled    bool
	TelemetryEndpoint   string
	TelemetrySampleRate float64
}

// SettingsSchema describes every framework setting, its sources and its
// default. Secrets and connection URLs are environment-only.
func SettingsSchema() *config.Schema {
	return &config.Schema{
		Name: "framework",
		Options: map[string]*config.Option{
			"name": {
				Name:        []string{"project", "name"},
				Default:     "squidbot",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The internal name of the framework instance.",
			},
			"friendly_name": {
				Name:        []string{"project", "friendly_name"},
				Default:     "Squid Bot",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The friendly name of the framework instance.",
			},
			"gateway_url": {
				Name:        []string{"gateway", "url"},
				Sources:     []config.Source{config.SourceEnvironment, config.SourceManifestGlobal, config.SourceDefault},
				Default:     config.Required,
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The websocket URL of the chat gateway.",
			},
			"gateway_token": {
				Name:        []string{"gateway", "token"},
				Sources:     []config.Source{config.SourceEnvironment, config.SourceDefault},
				Default:     config.Required,
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The token for authenticating with the chat gateway.",
			},
			"command_prefix": {
				Name:        []string{"gateway", "command_prefix"},
				Default:     "!",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The command prefix for chat commands.",
			},
			"log_level": {
				Name:        []string{"log", "level"},
				Default:     "info",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The logging level for the framework. Can be debug, info, warn, error.",
			},
			"debug_mode": {
				Name:        []string{"log", "debug_mode"},
				Default:     false,
				Type:        config.TypeBool,
				Coerce:      true,
				Description: "Enable debug mode for the framework.",
			},
			"log_file": {
				Name:        []string{"log", "file"},
				Default:     nil,
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The file path to log output to. If not set, logging to file is disabled.",
			},
			"log_to_console": {
				Name:        []string{"log", "console"},
				Default:     true,
				Type:        config.TypeBool,
				Coerce:      true,
				Description: "Enable logging output to the console.",
			},
			"plugins": {
				Name:        []string{"plugins", "plugins"},
				Default:     nil,
				Type:        config.TypeList,
				Description: "A list of plugins to load at framework startup.",
			},
			"packages": {
				Name:        []string{"plugins", "packages"},
				Sources:     []config.Source{config.SourceManifestGlobal, config.SourceDefault},
				Default:     nil,
				Type:        config.TypeMap,
				Description: "A mapping of plugin package names to their dir and module paths.",
			},
			"package_core": {
				Name:        []string{"plugins", "package_core"},
				Sources:     []config.Source{config.SourceManifestGlobal, config.SourceDefault},
				Default:     "github.com/squidlabs/squidcore/plugins",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "Override the core plugins package module path.",
			},
			"package_core_dir": {
				Name:        []string{"plugins", "package_core_dir"},
				Sources:     []config.Source{config.SourceManifestGlobal, config.SourceDefault},
				Default:     "./plugins",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "Override the directory scanned for core plugin manifests.",
			},
			"database_url": {
				Name:        []string{"database", "url"},
				Sources:     []config.Source{config.SourceEnvironment, config.SourceDefault},
				Default:     config.Required,
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The URL for the database used by the framework.",
			},
			"redis_url": {
				Name:        []string{"redis", "url"},
				Sources:     []config.Source{config.SourceEnvironment, config.SourceDefault},
				Default:     config.Required,
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The URL for the Redis instance used by the framework.",
			},
			"cli_prefix": {
				Name:        []string{"gateway", "cli", "prefix"},
				Default:     "> ",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The prefix for CLI commands sent via the gateway.",
			},
			"cli_channels": {
				Name:        []string{"gateway", "cli", "channels"},
				Sources:     []config.Source{config.SourceKVStore, config.SourceEnvironment, config.SourceDefault},
				Default:     config.Required,
				Type:        config.TypeList,
				Coerce:      true, // env vars carry the list as a JSON array string
				Description: "A list of channel IDs where CLI commands are allowed.",
			},
			"data_dir": {
				Name:        []string{"filesystem", "data_dir"},
				Default:     "./data",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "Root directory for all framework data storage.",
			},
			"metrics_enabled": {
				Name:        []string{"metrics", "enabled"},
				Default:     true,
				Type:        config.TypeBool,
				Coerce:      true,
				Description: "Enable prometheus metrics collection.",
			},
			"metrics_addr": {
				Name:        []string{"metrics", "addr"},
				Default:     ":9100",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The listen address for the metrics and health endpoint.",
			},
			"telemetry_enabled": {
				Name:        []string{"telemetry", "enabled"},
				Default:     false,
				Type:        config.TypeBool,
				Coerce:      true,
				Description: "Enable OpenTelemetry traces and metrics export.",
			},
			"telemetry_endpoint": {
				Name:        []string{"telemetry", "endpoint"},
				Default:     "localhost:4317",
				Type:        config.TypeString,
				Coerce:      true,
				Description: "The OTLP gRPC endpoint for telemetry export.",
			},
			"telemetry_sample_rate": {
				Name:        []string{"telemetry", "sample_rate"},
				Default:     1.0,
				Type:        config.TypeFloat,
				Coerce:      true,
				Description: "The trace sampling ratio, 0.0 to 1.0.",
			},
		},
	}
}

// settingsFromResolved converts the resolved schema values into the typed
// Settings struct.
func settingsFromResolved(r *config.Resolved) (*Settings, error) {
	st := &Settings{
		Name:                r.String("name"),
		FriendlyName:        r.String("friendly_name"),
		GatewayURL:          r.String("gateway_url"),
		GatewayToken:        r.String("gateway_token"),
		CommandPrefix:       r.String("command_prefix"),
		LogLevel:            r.String("log_level"),
		DebugMode:           r.Bool("debug_mode"),
		LogFile:             r.String("log_file"),
		LogToConsole:        r.Bool("log_to_console"),
		Plugins:             r.StringSlice("plugins"),
		PackageCore:         r.String("package_core"),
		PackageCoreDir:      r.String("package_core_dir"),
		DatabaseURL:         r.String("database_url"),
		RedisURL:            r.String("redis_url"),
		CLIPrefix:           r.String("cli_prefix"),
		CLIChannels:         r.StringSlice("cli_channels"),
		DataDir:             r.String("data_dir"),
		MetricsEnabled:      r.Bool("metrics_enabled"),
		MetricsAddr:         r.String("metrics_addr"),
		TelemetryEnabled:    r.Bool("telemetry_enabled"),
		TelemetryEndpoint:   r.String("telemetry_endpoint"),
		TelemetrySampleRate: r.Float("telemetry_sample_rate"),
	}

	if raw, ok := r.Get("packages").(map[string]any); ok {
		st.Packages = make(map[string]PackageSpec, len(raw))
		for name, entry := range raw {
			spec, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("plugins.packages.%s: expected a mapping with dir and module", name)
			}
			dir, _ := spec["dir"].(string)
			module, _ := spec["module"].(string)
			if dir == "" || module == "" {
				return nil, fmt.Errorf("plugins.packages.%s: dir and module are both required", name)
			}
			st.Packages[name] = PackageSpec{Dir: dir, Module: module}
		}
	}

	return st, nil
}
