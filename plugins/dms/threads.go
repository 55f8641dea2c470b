package dms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/squidlabs/squidcore/components/gateway"
	"github.com/squidlabs/squidcore/plugin"
)

// dmChannelPrefix marks gateway channels that are user DM channels; the
// remainder of the ID is the user ID.
const dmChannelPrefix = "dm:"

// ThreadGenerator owns the user-to-thread mapping: an in-memory cache in
// front of the dm_threads table, plus the message forwarding in both
// directions.
type ThreadGenerator struct {
	plugin *DMPlugin

	mu       sync.Mutex
	byUser   map[string]string // user ID -> thread channel ID
	byThread map[string]string // thread channel ID -> user ID
}

// Capabilities declares the message listener that drives forwarding.
func (t *ThreadGenerator) Capabilities() []plugin.Descriptor {
	return []plugin.Descriptor{
		plugin.GatewayListener{Event: "message", Handler: t.onMessage},
	}
}

// ThreadFor returns the thread channel for a user, creating and persisting
// one when none exists.
func (t *ThreadGenerator) ThreadFor(ctx context.Context, userID string) (string, error) {
	if cached, ok := t.cacheGetByUser(userID); ok {
		return cached, nil
	}

	gdb := t.db()
	if gdb == nil {
		return "", errors.New("database not available")
	}

	var row DMThread
	err := gdb.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	switch {
	case err == nil:
		t.cacheAdd(userID, row.ChannelID)
		return row.ChannelID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to creation
	default:
		return "", fmt.Errorf("thread lookup: %w", err)
	}

	channelID := t.plugin.settings.ThreadPrefix + userID
	row = DMThread{UserID: userID, ChannelID: channelID}
	if err := gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("thread create: %w", err)
	}
	t.cacheAdd(userID, channelID)
	t.logger().Info("created DM thread",
		zap.String("user", userID),
		zap.String("thread", channelID),
	)
	return channelID, nil
}

// UserForThread resolves which user a thread channel belongs to.
func (t *ThreadGenerator) UserForThread(ctx context.Context, channelID string) (string, bool) {
	if cached, ok := t.cacheGetByThread(channelID); ok {
		return cached, true
	}
	gdb := t.db()
	if gdb == nil {
		return "", false
	}
	var row DMThread
	if err := gdb.WithContext(ctx).First(&row, "channel_id = ?", channelID).Error; err != nil {
		return "", false
	}
	t.cacheAdd(row.UserID, row.ChannelID)
	return row.UserID, true
}

// onMessage forwards DMs into threads and thread replies back out as DMs.
func (t *ThreadGenerator) onMessage(ctx context.Context, ev gateway.Event) error {
	msg, ok := gateway.MessageFromEvent(ev)
	if !ok {
		return nil
	}

	if strings.HasPrefix(msg.ChannelID, dmChannelPrefix) {
		return t.onDM(ctx, msg)
	}
	if userID, ok := t.UserForThread(ctx, msg.ChannelID); ok {
		return t.onThread(ctx, msg, userID)
	}
	return nil
}

// onDM mirrors an incoming direct message into the user's thread.
func (t *ThreadGenerator) onDM(ctx context.Context, msg gateway.Message) error {
	if msg.AuthorBot {
		return nil // never re-forward our own mirrored output
	}
	userID := strings.TrimPrefix(msg.ChannelID, dmChannelPrefix)
	threadID, err := t.ThreadFor(ctx, userID)
	if err != nil {
		t.logger().Error("failed to get thread for DM",
			zap.String("user", userID),
			zap.Error(err),
		)
		return err
	}
	content := fmt.Sprintf("[%s] %s", msg.AuthorID, msg.Content)
	return t.plugin.Host.Gateway().Send(ctx, threadID, content)
}

// onThread forwards a staff reply in a thread to the user's DM channel.
func (t *ThreadGenerator) onThread(ctx context.Context, msg gateway.Message, userID string) error {
	if msg.AuthorBot && !t.plugin.settings.CaptureBotMessages {
		return nil
	}
	return t.plugin.Host.Gateway().Send(ctx, dmChannelPrefix+userID, msg.Content)
}

// --- cache ---

func (t *ThreadGenerator) cacheAdd(userID, channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byUser == nil {
		t.byUser = make(map[string]string)
		t.byThread = make(map[string]string)
	}
	t.byUser[userID] = channelID
	t.byThread[channelID] = userID
}

func (t *ThreadGenerator) cacheGetByUser(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byUser[userID]
	return id, ok
}

func (t *ThreadGenerator) cacheGetByThread(channelID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byThread[channelID]
	return id, ok
}

func (t *ThreadGenerator) cacheClear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byUser = nil
	t.byThread = nil
}

func (t *ThreadGenerator) db() *gorm.DB {
	d := t.plugin.Host.DB()
	if d == nil || !d.Active() {
		return nil
	}
	return d.DB()
}

func (t *ThreadGenerator) logger() *zap.Logger {
	return t.plugin.Logger().With(zap.String("component", "thread_generator"))
}
