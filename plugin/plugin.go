package plugin

import (
	"context"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/squidlabs/squidcore/config"
)

// ManifestFileName is the per-plugin manifest looked for by discovery.
const ManifestFileName = "plugin.yaml"

// State is a plugin's lifecycle state. Transitions are driven only by the
// Manager: UNLOADED → PRE_LOADED → LOADED, back to UNLOADED on unload, and
// ERROR from any failed transition.
type State string

const (
	StateUnloaded  State = "unloaded"
	StatePreLoaded State = "pre_loaded"
	StateLoaded    State = "loaded"
	StateError     State = "error"
)

// Instance is a live plugin. Load runs during framework startup after all
// preloads completed; Unload runs during shutdown.
type Instance interface {
	Load(ctx context.Context) error
	Unload(ctx context.Context) error
}

// Preloader is implemented by instances that need a hook before load,
// while database models are still being registered.
type Preloader interface {
	Preload(ctx context.Context) error
}

// Plugin is one discovered plugin record. Records are created by discovery,
// mutated (State, Instance) only by the Manager, and kept for the whole run;
// an unloaded plugin stays available for re-load.
type Plugin struct {
	// Name is the globally unique "source:localname" identity.
	Name        string
	Description string

	// ModulePath is the plugin's import path; OSPath the directory holding
	// its manifest.
	ModulePath string
	OSPath     string

	// Manifest is the parsed plugin.yaml, consulted by MANIFEST_PLUGIN
	// configuration lookups.
	Manifest config.Manifest

	// Registration is the static-registry entry resolved at discovery.
	Registration Registration

	// Instance is set when the plugin is instantiated during preload.
	Instance Instance

	State State

	// DBModels lists the model module paths the manifest declares, relative
	// to ModulePath.
	DBModels []string

	// Dependencies lists plugin names this plugin expects to be available.
	// Informational: presence is checked and warned about, never enforced.
	Dependencies []string
}

// ManifestLookup satisfies config.PluginContext, exposing the plugin's own
// manifest to MANIFEST_PLUGIN configuration lookups.
func (p *Plugin) ManifestLookup(path ...string) (any, bool) {
	if p.Manifest == nil {
		return nil, false
	}
	return p.Manifest.Get(path...)
}

// manifestFile is the typed shape of plugin.yaml.
type manifestFile struct {
	Plugin struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Class       string `yaml:"class"`
	} `yaml:"plugin"`
	DB struct {
		Models []string `yaml:"models"`
	} `yaml:"db"`
	Dependencies struct {
		Plugins []string `yaml:"plugins"`
	} `yaml:"dependencies"`
}

func parseManifestFile(data []byte) (*manifestFile, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, err
	}
	return &mf, nil
}

// sanitizeName enforces the naming convention: lowercase, spaces replaced.
func sanitizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
