package cli

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squidlabs/squidcore/components/gateway"
	"github.com/squidlabs/squidcore/internal/metrics"
)

// recordingGateway captures Send calls and feeds events straight to its
// listeners.
type recordingGateway struct {
	mu        sync.Mutex
	listeners gateway.Listeners
	sent      []string
}

func (g *recordingGateway) AddListener(fn gateway.Listener, eventName string) {
	g.listeners.Add(fn, eventName)
}

func (g *recordingGateway) Send(ctx context.Context, channelID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, channelID+"|"+content)
	return nil
}

func (g *recordingGateway) UpdatePresence(ctx context.Context, status string) error { return nil }
func (g *recordingGateway) Run(ctx context.Context) error                           { <-ctx.Done(); return ctx.Err() }
func (g *recordingGateway) Close() error                                            { return nil }

func (g *recordingGateway) emit(ctx context.Context, ev gateway.Event) error {
	return g.listeners.Dispatch(ctx, ev)
}

func (g *recordingGateway) lastSent() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return ""
	}
	return g.sent[len(g.sent)-1]
}

func messageEvent(channelID, authorID, content string, bot bool) gateway.Event {
	return gateway.Event{
		Name: "message",
		Data: map[string]any{
			"id":         "m1",
			"channel_id": channelID,
			"author_id":  authorID,
			"author_bot": bot,
			"content":    content,
		},
	}
}

// --- Registration ---

func TestRegisterCommand_Uniqueness(t *testing.T) {
	m := NewManager(nil, nil, "> ", nil)
	exec := func(ctx context.Context, inv *Invocation) error { return nil }

	require.NoError(t, m.RegisterCommand(&Command{Name: "dm", Aliases: []string{"dms"}, Execute: exec}))

	err := m.RegisterCommand(&Command{Name: "dm", Execute: exec})
	require.Error(t, err, "duplicate name rejected")

	err = m.RegisterCommand(&Command{Name: "direct", Aliases: []string{"dms"}, Execute: exec})
	require.Error(t, err, "duplicate alias rejected")

	cmd, ok := m.Lookup("dms")
	require.True(t, ok)
	assert.Equal(t, "dm", cmd.Name)
	assert.Len(t, m.Commands(), 1)
}

func TestRegisterCommand_Validation(t *testing.T) {
	m := NewManager(nil, nil, "> ", nil)
	assert.Error(t, m.RegisterCommand(nil))
	assert.Error(t, m.RegisterCommand(&Command{Name: ""}))
	assert.Error(t, m.RegisterCommand(&Command{Name: "x"}), "handler required")
}

// --- Dispatch ---

func TestDispatch_ExecutesWithArgs(t *testing.T) {
	gw := &recordingGateway{}
	m := NewManager(gw, []string{"cli-1"}, "> ", nil)

	var gotArgs []string
	var gotUser string
	require.NoError(t, m.RegisterCommand(&Command{
		Name: "dm",
		Execute: func(ctx context.Context, inv *Invocation) error {
			gotArgs = inv.Args
			gotUser = inv.UserID
			assert.NotEmpty(t, inv.ID)
			return inv.Respond(ctx, "done")
		},
	}))

	err := gw.emit(context.Background(), messageEvent("cli-1", "user-9", "> dm 12345 extra", false))
	require.NoError(t, err)
	assert.Equal(t, []string{"12345", "extra"}, gotArgs)
	assert.Equal(t, "user-9", gotUser)
	assert.Equal(t, "cli-1|done", gw.lastSent())
}

func TestDispatch_IgnoresUnrelatedMessages(t *testing.T) {
	gw := &recordingGateway{}
	m := NewManager(gw, []string{"cli-1"}, "> ", nil)

	var calls int
	require.NoError(t, m.RegisterCommand(&Command{
		Name:    "dm",
		Execute: func(ctx context.Context, inv *Invocation) error { calls++; return nil },
	}))
	ctx := context.Background()

	// Wrong channel.
	require.NoError(t, gw.emit(ctx, messageEvent("other", "u", "> dm", false)))
	// Bot author.
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "> dm", true)))
	// Missing prefix.
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "dm", false)))
	// Prefix only.
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "> ", false)))
	// Unknown command.
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "> nope", false)))

	assert.Zero(t, calls)
}

func TestDispatch_ErrorReportedToChannel(t *testing.T) {
	gw := &recordingGateway{}
	m := NewManager(gw, []string{"cli-1"}, "> ", nil)

	require.NoError(t, m.RegisterCommand(&Command{
		Name:    "fail",
		Execute: func(ctx context.Context, inv *Invocation) error { return errors.New("nope") },
	}))

	require.NoError(t, gw.emit(context.Background(), messageEvent("cli-1", "u", "> fail", false)))
	assert.Contains(t, gw.lastSent(), `command "fail" failed`)
}

func TestDispatch_RateLimitsPerUser(t *testing.T) {
	gw := &recordingGateway{}
	m := NewManager(gw, []string{"cli-1"}, "> ", nil)

	var calls int
	require.NoError(t, m.RegisterCommand(&Command{
		Name:    "spam",
		Execute: func(ctx context.Context, inv *Invocation) error { calls++; return nil },
	}))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "flooder", "> spam", false)))
	}
	assert.Less(t, calls, 20, "burst beyond the limiter is dropped")
	assert.GreaterOrEqual(t, calls, 1)

	// A different user has their own budget.
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "calm", "> spam", false)))
	assert.GreaterOrEqual(t, calls, 2)
}

func TestChannels(t *testing.T) {
	m := NewManager(nil, []string{"a", "b"}, "> ", nil)
	assert.ElementsMatch(t, []string{"a", "b"}, m.Channels())
}

func TestDispatch_ExecutionsCounted(t *testing.T) {
	gw := &recordingGateway{}
	m := NewManager(gw, []string{"cli-1"}, "> ", nil)
	reg := prometheus.NewRegistry()
	m.SetMetrics(metrics.NewCollector("test", reg, nil))

	require.NoError(t, m.RegisterCommand(&Command{
		Name:    "dm",
		Plugin:  "core:dms",
		Execute: func(ctx context.Context, inv *Invocation) error { return nil },
	}))
	ctx := context.Background()

	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "> dm", false)))
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "> dm", false)))
	// Ignored messages must not count.
	require.NoError(t, gw.emit(ctx, messageEvent("cli-1", "u", "> nope", false)))
	require.NoError(t, gw.emit(ctx, messageEvent("other", "u", "> dm", false)))

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "test_cli_commands_total" {
			continue
		}
		for _, sample := range mf.GetMetric() {
			total += sample.GetCounter().GetValue()
		}
	}
	assert.EqualValues(t, 2, total)
}
