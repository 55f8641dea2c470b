// Package redisbus is the message-bus collaborator: plugins subscribe to
// redis pub/sub channels and publish JSON payloads to them.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler processes one message received on a subscribed channel.
type Handler func(ctx context.Context, channel string, payload map[string]any) error

// Bus wraps a redis client with a channel-keyed listener table and a
// subscription pump.
type Bus struct {
	client *redis.Client
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New creates a Bus from a redis URL (redis://[:password@]host:port/db).
func New(url string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), logger), nil
}

// NewWithClient wraps an existing redis client (used by tests).
func NewWithClient(client *redis.Client, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		client:   client,
		logger:   logger.With(zap.String("component", "redisbus")),
		handlers: make(map[string][]Handler),
	}
}

// Ping verifies connectivity.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// AddListener subscribes fn to a channel. Listeners must be added before
// Run; channels registered later are not picked up by a running pump.
func (b *Bus) AddListener(channel string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = append(b.handlers[channel], fn)
	b.logger.Debug("bus listener added", zap.String("channel", channel))
}

// Publish sends a JSON-encoded payload to a channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload map[string]any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode bus payload: %w", err)
	}
	return b.client.Publish(ctx, channel, blob).Err()
}

// Run subscribes to every channel with listeners and pumps messages until
// ctx is canceled. With no listeners it waits for cancellation.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.RLock()
	channels := make([]string, 0, len(b.handlers))
	for ch := range b.handlers {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	if len(channels) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	b.logger.Info("bus subscribed", zap.Strings("channels", channels))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return errors.New("bus subscription closed")
			}
			b.deliver(ctx, msg.Channel, msg.Payload)
		}
	}
}

// deliver decodes a payload and invokes the channel's handlers in order.
func (b *Bus) deliver(ctx context.Context, channel, raw string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		b.logger.Warn("bus message is not a JSON object, dropping",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return
	}
	b.mu.RLock()
	fns := append([]Handler(nil), b.handlers[channel]...)
	b.mu.RUnlock()
	for _, fn := range fns {
		if err := fn(ctx, channel, payload); err != nil {
			b.logger.Error("bus handler failed",
				zap.String("channel", channel),
				zap.Error(err),
			)
		}
	}
}

// Close releases the redis client.
func (b *Bus) Close() error {
	return b.client.Close()
}
