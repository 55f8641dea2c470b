package plugin

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/squidlabs/squidcore/components/cli"
	"github.com/squidlabs/squidcore/components/db"
	"github.com/squidlabs/squidcore/components/events"
	"github.com/squidlabs/squidcore/components/gateway"
	"github.com/squidlabs/squidcore/components/redisbus"
	"github.com/squidlabs/squidcore/config"
)

// Host is the narrow view of the framework handed to plugins and capability
// registrars.
type Host interface {
	Config() *config.Manager
	DB() *db.Database
	CLI() *cli.Manager
	EventBus() *events.Bus
	Gateway() gateway.Gateway
	Redis() *redisbus.Bus
	Logger() *zap.Logger
}

// Descriptor is one unit of plugin-declared behavior to wire into a host
// registry. Concrete descriptors are tagged by Kind; the kind table maps a
// kind to its registration side effect, so new capability kinds plug in
// without touching Apply.
type Descriptor interface {
	Kind() string
}

// CapabilityProvider is implemented by plugin instances (and their
// components) that declare capabilities.
type CapabilityProvider interface {
	Capabilities() []Descriptor
}

// Component is a nested sub-object of a plugin whose capabilities register
// alongside the plugin's own.
type Component interface {
	CapabilityProvider
}

// ComponentProvider exposes nested components; Apply recurses into them
// before the owner's own capabilities.
type ComponentProvider interface {
	Components() []Component
}

// =============================================================================
// Descriptor kinds
// =============================================================================

// Command declares a CLI command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Execute     cli.Handler
}

func (Command) Kind() string { return "command" }

// EventListener declares a framework event-bus listener.
type EventListener struct {
	Event   string
	Handler events.Listener
}

func (EventListener) Kind() string { return "event_listener" }

// GatewayListener declares a chat-gateway event listener.
type GatewayListener struct {
	Event   string
	Handler gateway.Listener
}

func (GatewayListener) Kind() string { return "gateway_listener" }

// BusSubscription declares a message-bus channel subscription.
type BusSubscription struct {
	Channel string
	Handler redisbus.Handler
}

func (BusSubscription) Kind() string { return "bus_subscription" }

// =============================================================================
// Kind table
// =============================================================================

// RegisterFunc performs one descriptor's registration side effect against
// the host.
type RegisterFunc func(ctx context.Context, host Host, rec *Plugin, desc Descriptor) error

var (
	kindMu sync.RWMutex
	kinds  = make(map[string]RegisterFunc)
)

// RegisterKind installs the registration side effect for a descriptor kind.
// The table is written during the startup registration pass and read-only
// afterwards; duplicate kinds are an error.
func RegisterKind(kind string, fn RegisterFunc) error {
	kindMu.Lock()
	defer kindMu.Unlock()
	if _, exists := kinds[kind]; exists {
		return fmt.Errorf("capability kind already registered: %s", kind)
	}
	kinds[kind] = fn
	return nil
}

func lookupKind(kind string) (RegisterFunc, bool) {
	kindMu.RLock()
	defer kindMu.RUnlock()
	fn, ok := kinds[kind]
	return fn, ok
}

var builtinKindsOnce sync.Once

// RegisterBuiltinKinds populates the kind table with the four built-in
// capability kinds. Called once from framework initialization.
func RegisterBuiltinKinds() {
	builtinKindsOnce.Do(func() {
		// Errors impossible here: the table is empty inside the Once.
		_ = RegisterKind("command", registerCommand)
		_ = RegisterKind("event_listener", registerEventListener)
		_ = RegisterKind("gateway_listener", registerGatewayListener)
		_ = RegisterKind("bus_subscription", registerBusSubscription)
	})
}

func registerCommand(ctx context.Context, host Host, rec *Plugin, desc Descriptor) error {
	d, ok := desc.(Command)
	if !ok {
		return fmt.Errorf("descriptor kind %q has unexpected type %T", desc.Kind(), desc)
	}
	err := host.CLI().RegisterCommand(&cli.Command{
		Name:        d.Name,
		Aliases:     d.Aliases,
		Description: d.Description,
		Plugin:      rec.Name,
		Execute:     d.Execute,
	})
	if err != nil {
		return err
	}
	host.Logger().Info("registered command capability",
		zap.String("command", d.Name),
		zap.String("plugin", rec.Name),
	)
	return nil
}

func registerEventListener(ctx context.Context, host Host, rec *Plugin, desc Descriptor) error {
	d, ok := desc.(EventListener)
	if !ok {
		return fmt.Errorf("descriptor kind %q has unexpected type %T", desc.Kind(), desc)
	}
	if d.Event == "" {
		return fmt.Errorf("event listener capability needs an event name")
	}
	host.EventBus().RegisterListener(d.Event, d.Handler)
	host.Logger().Info("registered event listener capability",
		zap.String("event", d.Event),
		zap.String("plugin", rec.Name),
	)
	return nil
}

func registerGatewayListener(ctx context.Context, host Host, rec *Plugin, desc Descriptor) error {
	d, ok := desc.(GatewayListener)
	if !ok {
		return fmt.Errorf("descriptor kind %q has unexpected type %T", desc.Kind(), desc)
	}
	if d.Event == "" {
		return fmt.Errorf("gateway listener capability needs an event name")
	}
	host.Gateway().AddListener(d.Handler, d.Event)
	host.Logger().Info("registered gateway listener capability",
		zap.String("event", d.Event),
		zap.String("plugin", rec.Name),
	)
	return nil
}

func registerBusSubscription(ctx context.Context, host Host, rec *Plugin, desc Descriptor) error {
	d, ok := desc.(BusSubscription)
	if !ok {
		return fmt.Errorf("descriptor kind %q has unexpected type %T", desc.Kind(), desc)
	}
	if d.Channel == "" {
		return fmt.Errorf("bus subscription capability needs a channel")
	}
	host.Redis().AddListener(d.Channel, d.Handler)
	host.Logger().Info("registered bus subscription capability",
		zap.String("channel", d.Channel),
		zap.String("plugin", rec.Name),
	)
	return nil
}

// =============================================================================
// Apply
// =============================================================================

// RegistrationError wraps a failure while wiring one declared capability,
// carrying the plugin and capability context. It aborts the owning plugin's
// preload.
type RegistrationError struct {
	Plugin     string
	Capability string
	Err        error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("plugin %s: failed to register capability %s: %v", e.Plugin, e.Capability, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Apply wires every capability declared by target into the host registries.
// Nested components register first, then the target's own descriptors, in
// declaration order. The first failure aborts with a RegistrationError.
//
// Apply is invoked exactly once per plugin, during preload; re-applying to
// the same instance would duplicate registrations and is the caller's
// responsibility to avoid.
func Apply(ctx context.Context, host Host, rec *Plugin, target any) error {
	for _, desc := range collectDescriptors(target) {
		fn, ok := lookupKind(desc.Kind())
		if !ok {
			return &RegistrationError{
				Plugin:     rec.Name,
				Capability: describeDescriptor(desc),
				Err:        fmt.Errorf("unknown capability kind %q", desc.Kind()),
			}
		}
		if err := fn(ctx, host, rec, desc); err != nil {
			return &RegistrationError{
				Plugin:     rec.Name,
				Capability: describeDescriptor(desc),
				Err:        err,
			}
		}
	}
	return nil
}

// collectDescriptors flattens target's capability tree: descriptors of
// nested components first, then target's own, in declaration order.
func collectDescriptors(target any) []Descriptor {
	var out []Descriptor
	if cp, ok := target.(ComponentProvider); ok {
		for _, sub := range cp.Components() {
			out = append(out, collectDescriptors(sub)...)
		}
	}
	if provider, ok := target.(CapabilityProvider); ok {
		out = append(out, provider.Capabilities()...)
	}
	return out
}

func describeDescriptor(desc Descriptor) string {
	switch d := desc.(type) {
	case Command:
		return fmt.Sprintf("command(%s)", d.Name)
	case EventListener:
		return fmt.Sprintf("event_listener(%s)", d.Event)
	case GatewayListener:
		return fmt.Sprintf("gateway_listener(%s)", d.Event)
	case BusSubscription:
		return fmt.Sprintf("bus_subscription(%s)", d.Channel)
	default:
		return desc.Kind()
	}
}
