// Package gateway is the chat-platform boundary: a listener table keyed by
// event name plus a websocket client that pumps platform events into it.
// The framework and plugins only depend on the Gateway interface; the
// concrete platform protocol stays behind it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Event is one platform event delivered to listeners.
type Event struct {
	Name string         `json:"event"`
	Data map[string]any `json:"data"`
}

// Message is a chat message extracted from a message event.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	AuthorID  string `json:"author_id"`
	AuthorBot bool   `json:"author_bot"`
	Content   string `json:"content"`
}

// Listener handles one gateway event.
type Listener func(ctx context.Context, ev Event) error

// Gateway is the boundary the framework and plugins program against.
type Gateway interface {
	// AddListener registers fn for the named event.
	AddListener(fn Listener, eventName string)
	// Send posts content to a channel.
	Send(ctx context.Context, channelID, content string) error
	// UpdatePresence sets the bot's presence/status text.
	UpdatePresence(ctx context.Context, status string) error
	// Run pumps events until ctx is canceled or the connection drops.
	Run(ctx context.Context) error
	// Close tears down the connection.
	Close() error
}

// =============================================================================
// Listener table
// =============================================================================

// Listeners is a table of event listeners shared by Gateway implementations.
type Listeners struct {
	mu    sync.RWMutex
	table map[string][]Listener
}

// Add registers fn for eventName.
func (l *Listeners) Add(fn Listener, eventName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.table == nil {
		l.table = make(map[string][]Listener)
	}
	l.table[eventName] = append(l.table[eventName], fn)
}

// Dispatch invokes every listener registered for ev.Name sequentially.
// Listener errors are collected, not fatal to the pump.
func (l *Listeners) Dispatch(ctx context.Context, ev Event) error {
	l.mu.RLock()
	fns := append([]Listener(nil), l.table[ev.Name]...)
	l.mu.RUnlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("listener for %q: %w", ev.Name, err))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Websocket client
// =============================================================================

// Client is a websocket Gateway implementation speaking a JSON event frame
// protocol: every frame is {"event": name, "data": {...}}.
type Client struct {
	url       string
	token     string
	logger    *zap.Logger
	listeners Listeners

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a gateway client for the given websocket URL. The token
// is sent in the identify frame on connect.
func NewClient(url, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		token:  token,
		logger: logger.With(zap.String("component", "gateway")),
	}
}

// AddListener registers fn for the named event.
func (c *Client) AddListener(fn Listener, eventName string) {
	c.listeners.Add(fn, eventName)
	c.logger.Debug("gateway listener added", zap.String("event", eventName))
}

// Run dials the gateway, identifies, and pumps events to listeners until
// ctx is canceled or the connection drops.
func (c *Client) Run(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := wsjson.Write(ctx, conn, Event{
		Name: "identify",
		Data: map[string]any{"token": c.token},
	}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	c.logger.Info("gateway connected", zap.String("url", c.url))

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("gateway read: %w", err)
		}
		if err := c.listeners.Dispatch(ctx, ev); err != nil {
			c.logger.Error("gateway listener error",
				zap.String("event", ev.Name),
				zap.Error(err),
			)
		}
	}
}

// Send posts content to a channel.
func (c *Client) Send(ctx context.Context, channelID, content string) error {
	return c.write(ctx, Event{
		Name: "message_create",
		Data: map[string]any{"channel_id": channelID, "content": content},
	})
}

// UpdatePresence sets the bot's status text.
func (c *Client) UpdatePresence(ctx context.Context, status string) error {
	return c.write(ctx, Event{
		Name: "presence_update",
		Data: map[string]any{"status": status},
	})
}

func (c *Client) write(ctx context.Context, ev Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("gateway not connected")
	}
	return wsjson.Write(ctx, conn, ev)
}

// Close tears down the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "shutdown")
	c.conn = nil
	return err
}

// MessageFromEvent extracts a chat Message from a message-shaped event.
func MessageFromEvent(ev Event) (Message, bool) {
	data := ev.Data
	if data == nil {
		return Message{}, false
	}
	msg := Message{}
	if v, ok := data["id"].(string); ok {
		msg.ID = v
	}
	if v, ok := data["channel_id"].(string); ok {
		msg.ChannelID = v
	}
	if v, ok := data["author_id"].(string); ok {
		msg.AuthorID = v
	}
	if v, ok := data["author_bot"].(bool); ok {
		msg.AuthorBot = v
	}
	if v, ok := data["content"].(string); ok {
		msg.Content = v
	}
	if msg.ChannelID == "" && msg.Content == "" {
		return Message{}, false
	}
	return msg, true
}
