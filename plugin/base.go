package plugin

import "go.uber.org/zap"

// recordAware is implemented by instances that want their own discovery
// record; the manager sets it right after instantiation, before any hooks.
type recordAware interface {
	SetRecord(rec *Plugin)
}

// Base is an embeddable plugin foundation: it carries the host and the
// plugin's own record, and satisfies the record wiring the manager performs
// during preload. Embedding it is optional; plugins only need Load/Unload.
type Base struct {
	Host Host
	Rec  *Plugin
}

// NewBase creates a Base bound to the host.
func NewBase(host Host) Base {
	return Base{Host: host}
}

// SetRecord attaches the discovery record. Called by the manager.
func (b *Base) SetRecord(rec *Plugin) { b.Rec = rec }

// Logger returns the host logger tagged with the plugin name.
func (b *Base) Logger() *zap.Logger {
	logger := b.Host.Logger()
	if b.Rec != nil {
		logger = logger.With(zap.String("plugin", b.Rec.Name))
	}
	return logger
}
