// Package events provides the in-process framework event bus. Plugins and
// core components register listeners by event name; dispatch is sequential
// and awaited, matching the single-orchestrator execution model.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/squidlabs/squidcore/internal/metrics"
)

// Event is one dispatched framework event.
type Event struct {
	// ID is a per-dispatch correlation id.
	ID string
	// Name is the event name listeners registered for.
	Name string
	// Data carries event payload fields.
	Data map[string]any
}

// Listener handles one event.
type Listener func(ctx context.Context, ev Event) error

// Bus is a minimal name-keyed event bus.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewBus creates an event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make(map[string][]Listener),
		logger:    logger.With(zap.String("component", "events")),
	}
}

// SetMetrics attaches the metrics collector; nil disables counting.
func (b *Bus) SetMetrics(c *metrics.Collector) {
	b.metrics = c
}

// RegisterListener registers a listener for the named event.
func (b *Bus) RegisterListener(eventName string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventName] = append(b.listeners[eventName], fn)
}

// ListenerCount returns how many listeners the named event has.
func (b *Bus) ListenerCount(eventName string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[eventName])
}

// Dispatch invokes every listener for eventName in registration order.
// Listener failures do not stop later listeners; all errors are joined.
func (b *Bus) Dispatch(ctx context.Context, eventName string, data map[string]any) error {
	b.mu.RLock()
	fns := append([]Listener(nil), b.listeners[eventName]...)
	b.mu.RUnlock()

	ev := Event{ID: uuid.NewString(), Name: eventName, Data: data}
	b.metrics.RecordEvent(eventName)
	b.logger.Debug("dispatching event",
		zap.String("event", eventName),
		zap.String("event_id", ev.ID),
		zap.Int("listeners", len(fns)),
	)

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("event %s listener: %w", eventName, err))
		}
	}
	return errors.Join(errs...)
}
