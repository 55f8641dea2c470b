// Package metrics provides internal prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the framework's prometheus instruments.
type Collector struct {
	// Plugin lifecycle
	pluginTransitions *prometheus.CounterVec
	pluginsDiscovered prometheus.Gauge
	lifecycleDuration *prometheus.HistogramVec

	// Capability wiring
	capabilityRegistrations *prometheus.CounterVec

	// Event and command traffic
	eventsDispatched *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector registers the framework instruments under namespace using
// reg (the default registerer when nil).
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.pluginTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_state_transitions_total",
			Help:      "Plugin lifecycle state transitions",
		},
		[]string{"plugin", "state"},
	)

	c.pluginsDiscovered = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_discovered",
			Help:      "Number of plugins found by the last discovery scan",
		},
	)

	c.lifecycleDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_lifecycle_duration_seconds",
			Help:      "Duration of plugin lifecycle operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	c.capabilityRegistrations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_registrations_total",
			Help:      "Capabilities wired into host registries",
		},
		[]string{"kind"},
	)

	c.eventsDispatched = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Framework event bus dispatches",
		},
		[]string{"event"},
	)

	c.commandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cli_commands_total",
			Help:      "CLI command executions",
		},
		[]string{"command", "plugin"},
	)

	return c
}

// RecordTransition counts one plugin state transition.
func (c *Collector) RecordTransition(plugin, state string) {
	if c == nil {
		return
	}
	c.pluginTransitions.WithLabelValues(plugin, state).Inc()
}

// SetDiscovered records the size of the last discovery scan.
func (c *Collector) SetDiscovered(n int) {
	if c == nil {
		return
	}
	c.pluginsDiscovered.Set(float64(n))
}

// ObserveLifecycle records the duration of one lifecycle operation.
func (c *Collector) ObserveLifecycle(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.lifecycleDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordCapability counts one capability registration.
func (c *Collector) RecordCapability(kind string) {
	if c == nil {
		return
	}
	c.capabilityRegistrations.WithLabelValues(kind).Inc()
}

// RecordEvent counts one event dispatch.
func (c *Collector) RecordEvent(event string) {
	if c == nil {
		return
	}
	c.eventsDispatched.WithLabelValues(event).Inc()
}

// RecordCommand counts one CLI command execution.
func (c *Collector) RecordCommand(command, plugin string) {
	if c == nil {
		return
	}
	c.commandsTotal.WithLabelValues(command, plugin).Inc()
}
