// Package plugin implements the extension runtime: manifest-driven
// discovery of plugins under named package roots, a static constructor
// registry, capability registration into host collaborators, and the
// preload/load/unload lifecycle state machine.
//
// A plugin directory is self-describing: it carries a plugin.yaml manifest
// naming the plugin, its constructor symbol, its database model modules and
// its declared dependencies. The Manager turns manifests into Plugin
// records and is the sole mutator of their state.
package plugin
