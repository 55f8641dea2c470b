// Package squidcore provides a top-level convenience entry point for
// embedding the bot framework with minimal boilerplate.
//
// Usage:
//
//	import "github.com/squidlabs/squidcore"
//
//	fw, err := squidcore.New(context.Background(), "framework.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fw.Run()
//
// This is a thin wrapper around [framework.New] with the built-in plugin
// registry pre-populated. Embedders shipping their own plugins should build
// a registry with [plugins/all.Register] plus their additions and call
// [framework.New] directly.
package squidcore

import (
	"context"

	"github.com/squidlabs/squidcore/framework"
	"github.com/squidlabs/squidcore/plugin"
	"github.com/squidlabs/squidcore/plugins/all"
)

// Framework is the long-lived bot service.
type Framework = framework.Framework

// Settings is the resolved framework configuration.
type Settings = framework.Settings

// New creates a Framework from the global manifest with the built-in
// plugins registered.
func New(ctx context.Context, manifestPath string) (*Framework, error) {
	return framework.New(ctx, manifestPath, all.Registry())
}

// NewWithRegistry creates a Framework with a caller-supplied constructor
// registry. Use [NewRegistry] and [all.Register] to seed it.
func NewWithRegistry(ctx context.Context, manifestPath string, registry *plugin.Registry) (*Framework, error) {
	return framework.New(ctx, manifestPath, registry)
}

// NewRegistry returns an empty plugin constructor registry.
func NewRegistry() *plugin.Registry { return plugin.NewRegistry() }
