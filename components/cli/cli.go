// Package cli implements the chat-interactive command table: plugins
// register named commands and the manager dispatches messages arriving from
// allowed channels. Channels on the allow-list should be private; anyone who
// can post there can run commands.
package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/squidlabs/squidcore/components/gateway"
	"github.com/squidlabs/squidcore/internal/metrics"
)

// Handler executes one command invocation.
type Handler func(ctx context.Context, inv *Invocation) error

// Command is one registered CLI command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	// Plugin is the owning plugin's name, empty for internal commands.
	Plugin  string
	Execute Handler
}

// Invocation is one command request parsed from a chat message.
type Invocation struct {
	// ID is a per-invocation correlation id.
	ID        string
	Command   *Command
	Args      []string
	ChannelID string
	UserID    string

	respond func(ctx context.Context, content string) error
}

// Respond sends content back to the invoking channel.
func (inv *Invocation) Respond(ctx context.Context, content string) error {
	if inv.respond == nil {
		return nil
	}
	return inv.respond(ctx, content)
}

// Manager owns the command table and dispatches chat messages to commands.
type Manager struct {
	prefix          string
	allowedChannels map[string]struct{}
	gw              gateway.Gateway
	logger          *zap.Logger
	metrics         *metrics.Collector

	mu       sync.RWMutex
	commands map[string]*Command // name and aliases all point at the command

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter // per-user command cooldown
	userRate  rate.Limit
	userBurst int
}

// NewManager creates a CLI manager. Commands are accepted only from the
// allowed channels and must start with prefix.
func NewManager(gw gateway.Gateway, allowedChannels []string, prefix string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allowedChannels))
	for _, id := range allowedChannels {
		allowed[id] = struct{}{}
	}
	m := &Manager{
		prefix:          prefix,
		allowedChannels: allowed,
		gw:              gw,
		logger:          logger.With(zap.String("component", "cli")),
		commands:        make(map[string]*Command),
		limiters:        make(map[string]*rate.Limiter),
		userRate:        rate.Limit(2), // 2 commands/sec per user
		userBurst:       4,
	}
	if gw != nil {
		gw.AddListener(m.onMessage, "message")
	}
	return m
}

// SetMetrics attaches the metrics collector; nil disables counting.
func (m *Manager) SetMetrics(c *metrics.Collector) {
	m.metrics = c
}

// RegisterCommand adds a command to the table. The name and every alias
// must be unused.
func (m *Manager) RegisterCommand(cmd *Command) error {
	if cmd == nil || cmd.Name == "" {
		return fmt.Errorf("command must have a name")
	}
	if cmd.Execute == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := append([]string{cmd.Name}, cmd.Aliases...)
	for _, key := range keys {
		if existing, ok := m.commands[key]; ok {
			return fmt.Errorf("command name %q already registered by %q", key, existing.Name)
		}
	}
	for _, key := range keys {
		m.commands[key] = cmd
	}
	m.logger.Info("registered CLI command",
		zap.String("command", cmd.Name),
		zap.Strings("aliases", cmd.Aliases),
		zap.String("plugin", cmd.Plugin),
	)
	return nil
}

// Channels returns the allowed channel IDs.
func (m *Manager) Channels() []string {
	out := make([]string, 0, len(m.allowedChannels))
	for id := range m.allowedChannels {
		out = append(out, id)
	}
	return out
}

// Lookup finds a command by exact name or alias.
func (m *Manager) Lookup(name string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cmd, ok := m.commands[name]
	return cmd, ok
}

// Commands returns the distinct registered commands.
func (m *Manager) Commands() []*Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[*Command]struct{}, len(m.commands))
	out := make([]*Command, 0, len(m.commands))
	for _, cmd := range m.commands {
		if _, dup := seen[cmd]; dup {
			continue
		}
		seen[cmd] = struct{}{}
		out = append(out, cmd)
	}
	return out
}

// onMessage is the gateway listener feeding the dispatcher.
func (m *Manager) onMessage(ctx context.Context, ev gateway.Event) error {
	msg, ok := gateway.MessageFromEvent(ev)
	if !ok {
		return nil
	}
	return m.Dispatch(ctx, msg)
}

// Dispatch parses and executes a chat message as a command. Messages from
// bots, disallowed channels, or without the prefix are ignored.
func (m *Manager) Dispatch(ctx context.Context, msg gateway.Message) error {
	if _, ok := m.allowedChannels[msg.ChannelID]; !ok {
		return nil
	}
	if msg.AuthorBot {
		return nil
	}
	if !strings.HasPrefix(msg.Content, m.prefix) {
		return nil
	}
	content := strings.TrimSpace(strings.TrimPrefix(msg.Content, m.prefix))
	if content == "" {
		return nil
	}
	parts := strings.Fields(content)
	cmd, ok := m.Lookup(parts[0])
	if !ok {
		return nil
	}
	if !m.allow(msg.AuthorID) {
		m.logger.Warn("command rate limited",
			zap.String("command", cmd.Name),
			zap.String("user", msg.AuthorID),
		)
		return nil
	}

	inv := &Invocation{
		ID:        uuid.NewString(),
		Command:   cmd,
		Args:      parts[1:],
		ChannelID: msg.ChannelID,
		UserID:    msg.AuthorID,
		respond: func(ctx context.Context, content string) error {
			if m.gw == nil {
				return nil
			}
			return m.gw.Send(ctx, msg.ChannelID, content)
		},
	}

	m.metrics.RecordCommand(cmd.Name, cmd.Plugin)
	m.logger.Info("executing CLI command",
		zap.String("command", cmd.Name),
		zap.Strings("args", inv.Args),
		zap.String("user", msg.AuthorID),
		zap.String("invocation_id", inv.ID),
	)

	if err := cmd.Execute(ctx, inv); err != nil {
		m.logger.Error("command execution failed",
			zap.String("command", cmd.Name),
			zap.Error(err),
		)
		return inv.Respond(ctx, fmt.Sprintf("command %q failed: %v", cmd.Name, err))
	}
	return nil
}

// allow applies the per-user cooldown.
func (m *Manager) allow(userID string) bool {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	lim, ok := m.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(m.userRate, m.userBurst)
		m.limiters[userID] = lim
	}
	return lim.Allow()
}
