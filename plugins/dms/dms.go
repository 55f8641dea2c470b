// Package dms mirrors direct messages into per-user staff threads: incoming
// DMs land in a thread under the CLI channel, staff replies in the thread go
// back out as DMs.
package dms

import (
	"context"
	"fmt"

	"github.com/squidlabs/squidcore/components/cli"
	"github.com/squidlabs/squidcore/config"
	"github.com/squidlabs/squidcore/plugin"
)

// Settings is the plugin's resolved configuration.
type Settings struct {
	ThreadPrefix       string
	CaptureBotMessages bool
	AutoArchiveThreads bool
}

func settingsSchema() *config.Schema {
	return &config.Schema{
		Name: "plugin.core.dms",
		Options: map[string]*config.Option{
			"thread_prefix": {
				Name:        []string{"plugin", "core", "dms", "thread_prefix"},
				Default:     "&&dm-",
				Type:        config.TypeString,
				Description: "Prefix for DM thread names.",
			},
			"capture_bot_messages": {
				Name:        []string{"plugin", "core", "dms", "capture_bot_messages"},
				Default:     true,
				Type:        config.TypeBool,
				Description: "Whether to capture messages sent by bots.",
			},
			"auto_archive_threads": {
				Name:        []string{"plugin", "core", "dms", "auto_archive_threads"},
				Default:     false,
				Type:        config.TypeBool,
				Description: "Whether to auto-archive DM threads after inactivity. [Not yet implemented]",
			},
		},
	}
}

// DMPlugin forwards DMs into staff threads and back.
type DMPlugin struct {
	plugin.Base

	settings Settings
	threads  *ThreadGenerator
}

// New constructs the plugin instance.
func New(host plugin.Host) plugin.Instance {
	p := &DMPlugin{Base: plugin.NewBase(host)}
	p.threads = &ThreadGenerator{plugin: p}
	return p
}

// Components exposes the thread generator so its capabilities register with
// the plugin's own.
func (p *DMPlugin) Components() []plugin.Component {
	return []plugin.Component{p.threads}
}

// Capabilities declares the dm command.
func (p *DMPlugin) Capabilities() []plugin.Descriptor {
	return []plugin.Descriptor{
		plugin.Command{
			Name:        "dm",
			Aliases:     []string{"dms"},
			Description: "Fetch a DM thread for a user.",
			Execute:     p.dmCommand,
		},
	}
}

// Preload resolves the plugin settings before anything dispatches.
func (p *DMPlugin) Preload(ctx context.Context) error {
	resolved, err := p.Host.Config().ResolveSchema(ctx, settingsSchema(), p.Rec)
	if err != nil {
		return err
	}
	p.settings = Settings{
		ThreadPrefix:       resolved.String("thread_prefix"),
		CaptureBotMessages: resolved.Bool("capture_bot_messages"),
		AutoArchiveThreads: resolved.Bool("auto_archive_threads"),
	}
	return nil
}

// Load is a no-op; the gateway listener and command were registered during
// preload.
func (p *DMPlugin) Load(ctx context.Context) error {
	p.Logger().Info("DM plugin loaded")
	return nil
}

// Unload drops the thread cache.
func (p *DMPlugin) Unload(ctx context.Context) error {
	p.threads.cacheClear()
	p.Logger().Info("DM plugin unloaded")
	return nil
}

func (p *DMPlugin) dmCommand(ctx context.Context, inv *cli.Invocation) error {
	if len(inv.Args) == 0 {
		return inv.Respond(ctx, "Please provide a user ID to fetch the DM thread.")
	}
	userID := inv.Args[0]
	threadID, err := p.threads.ThreadFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("get thread for %s: %w", userID, err)
	}
	return inv.Respond(ctx, fmt.Sprintf("DM thread for user %s is available: #%s", userID, threadID))
}
