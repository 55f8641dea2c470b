// Package config implements layered configuration resolution for the
// squidcore framework.
//
// A configuration option is a named, typed setting that may come from up to
// five ranked sources: the persistent KV store, environment variables, the
// global manifest, a plugin's own manifest, and a hardcoded default. Sources
// are always consulted in ascending precedence order and the first source
// that yields a type-acceptable value wins.
//
// Options are grouped into schemas; resolving a schema produces a Resolved
// bag with typed accessors:
//
//	mgr := config.NewManager("framework.yaml", logger)
//	settings, err := mgr.ResolveSchema(ctx, schema, nil)
package config
