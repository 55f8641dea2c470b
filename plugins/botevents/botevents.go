// Package botevents relays gateway lifecycle events (ready, guild joins and
// removals) and bus notifications into the CLI channels so operators see
// them where they work, and rotates the bot presence through a configured
// status list.
package botevents

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/squidlabs/squidcore/components/events"
	"github.com/squidlabs/squidcore/components/gateway"
	"github.com/squidlabs/squidcore/config"
	"github.com/squidlabs/squidcore/plugin"
)

// NotifyChannel is the message-bus channel other services publish operator
// notifications to.
const NotifyChannel = "squidcore_notify"

// presenceTimeout bounds a single UpdatePresence call.
const presenceTimeout = 10 * time.Second

// Settings is the plugin's resolved configuration.
type Settings struct {
	Statuses      []string
	RotationEvery time.Duration
}

var defaultStatuses = []any{
	"Playing hit the unsell button",
	"Watching you procrastinate",
	"🥔",
	"There is nothing we can do.",
	"Listening to the sound of silence",
	"Streaming absolutely nothing",
}

func settingsSchema() *config.Schema {
	return &config.Schema{
		Name: "plugin.core.bot_events",
		Options: map[string]*config.Option{
			"statuses": {
				Name:        []string{"plugin", "core", "bot_events", "statuses"},
				Default:     defaultStatuses,
				Type:        config.TypeList,
				Description: "Status lines rotated into the bot presence. Empty disables rotation.",
			},
			"rotation_interval_hours": {
				Name:        []string{"plugin", "core", "bot_events", "rotation_interval_hours"},
				Default:     24,
				Type:        config.TypeInt,
				Coerce:      true,
				Description: "Hours between presence changes.",
			},
		},
	}
}

// BotEventsPlugin posts event notices into every allowed CLI channel and
// owns the presence rotation loop.
type BotEventsPlugin struct {
	plugin.Base

	settings Settings

	mu           sync.Mutex
	stopRotation chan struct{}
}

// New constructs the plugin instance.
func New(host plugin.Host) plugin.Instance {
	return &BotEventsPlugin{Base: plugin.NewBase(host)}
}

// Capabilities declares the gateway listeners, the framework event listener
// and the bus subscription.
func (p *BotEventsPlugin) Capabilities() []plugin.Descriptor {
	return []plugin.Descriptor{
		plugin.GatewayListener{Event: "ready", Handler: p.onReady},
		plugin.GatewayListener{Event: "guild_join", Handler: p.onGuildJoin},
		plugin.GatewayListener{Event: "guild_remove", Handler: p.onGuildRemove},
		plugin.EventListener{Event: "framework_core_initialized", Handler: p.onCoreInitialized},
		plugin.BusSubscription{Channel: NotifyChannel, Handler: p.onNotify},
	}
}

// Preload resolves the plugin settings before the gateway connects.
func (p *BotEventsPlugin) Preload(ctx context.Context) error {
	resolved, err := p.Host.Config().ResolveSchema(ctx, settingsSchema(), p.Rec)
	if err != nil {
		return err
	}
	p.settings = Settings{
		Statuses:      resolved.StringSlice("statuses"),
		RotationEvery: time.Duration(resolved.Int("rotation_interval_hours")) * time.Hour,
	}
	return nil
}

func (p *BotEventsPlugin) Load(ctx context.Context) error { return nil }

// Unload stops the presence rotation loop.
func (p *BotEventsPlugin) Unload(ctx context.Context) error {
	p.mu.Lock()
	if p.stopRotation != nil {
		close(p.stopRotation)
		p.stopRotation = nil
	}
	p.mu.Unlock()
	return nil
}

// notify posts a line to every allowed CLI channel. Send failures are
// logged per channel; one dead channel must not mute the rest.
func (p *BotEventsPlugin) notify(ctx context.Context, title, message string) {
	content := fmt.Sprintf("**%s** — %s", title, message)
	for _, channelID := range p.Host.CLI().Channels() {
		if err := p.Host.Gateway().Send(ctx, channelID, content); err != nil {
			p.Logger().Error("failed to notify CLI channel",
				zap.String("channel", channelID),
				zap.Error(err),
			)
		}
	}
}

func (p *BotEventsPlugin) onReady(ctx context.Context, ev gateway.Event) error {
	user, _ := ev.Data["user"].(string)
	p.notify(ctx, "Bot Ready", fmt.Sprintf("Got a ready event as %s! (This could be a reconnect.)", user))
	p.startRotation()
	return nil
}

// startRotation starts the presence loop once; a ready re-fired by a
// gateway reconnect must not start a second one.
func (p *BotEventsPlugin) startRotation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopRotation != nil || len(p.settings.Statuses) == 0 {
		return
	}
	stop := make(chan struct{})
	p.stopRotation = stop
	go p.rotate(stop, p.settings.RotationEvery)
	p.Logger().Info("presence rotation started",
		zap.Int("statuses", len(p.settings.Statuses)),
		zap.Duration("interval", p.settings.RotationEvery),
	)
}

// rotate sets a presence immediately, then again on every tick until stop
// closes.
func (p *BotEventsPlugin) rotate(stop chan struct{}, interval time.Duration) {
	p.changePresence()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.changePresence()
		}
	}
}

// changePresence picks a random configured status and pushes it to the
// gateway.
func (p *BotEventsPlugin) changePresence() {
	statuses := p.settings.Statuses
	if len(statuses) == 0 {
		return
	}
	status := statuses[rand.IntN(len(statuses))]
	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := p.Host.Gateway().UpdatePresence(ctx, status); err != nil {
		p.Logger().Warn("failed to update presence",
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (p *BotEventsPlugin) onGuildJoin(ctx context.Context, ev gateway.Event) error {
	name, _ := ev.Data["name"].(string)
	id, _ := ev.Data["id"].(string)
	p.notify(ctx, "Joined Server", fmt.Sprintf("Joined server: %s (ID: %s)", name, id))
	return nil
}

func (p *BotEventsPlugin) onGuildRemove(ctx context.Context, ev gateway.Event) error {
	name, _ := ev.Data["name"].(string)
	id, _ := ev.Data["id"].(string)
	p.notify(ctx, "Left Server", fmt.Sprintf("Left server: %s (ID: %s)", name, id))
	return nil
}

func (p *BotEventsPlugin) onCoreInitialized(ctx context.Context, ev events.Event) error {
	p.Logger().Info("core components initialized")
	return nil
}

func (p *BotEventsPlugin) onNotify(ctx context.Context, channel string, payload map[string]any) error {
	title, _ := payload["title"].(string)
	message, _ := payload["message"].(string)
	if title == "" && message == "" {
		return nil
	}
	if title == "" {
		title = "Notification"
	}
	p.notify(ctx, title, message)
	return nil
}
