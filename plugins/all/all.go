// Package all registers every built-in plugin constructor. Importing it is
// the static equivalent of scanning the core plugins package.
package all

import (
	"github.com/squidlabs/squidcore/plugin"
	"github.com/squidlabs/squidcore/plugins/botevents"
	"github.com/squidlabs/squidcore/plugins/dms"
)

// Register adds the built-in plugin constructors to the registry.
func Register(r *plugin.Registry) {
	r.MustAdd("github.com/squidlabs/squidcore/plugins/dms", plugin.Registration{
		New: dms.New,
		Models: map[string][]any{
			"models": {&dms.DMThread{}},
		},
	})
	r.MustAdd("github.com/squidlabs/squidcore/plugins/botevents", plugin.Registration{
		New: botevents.New,
	})
}

// Registry returns a fresh registry with every built-in plugin registered.
func Registry() *plugin.Registry {
	r := plugin.NewRegistry()
	Register(r)
	return r
}
