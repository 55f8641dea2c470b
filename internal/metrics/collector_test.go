package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("test", prometheus.NewRegistry(), nil)
}

func TestCollector_Counters(t *testing.T) {
	c := testCollector(t)

	c.RecordTransition("core:dms", "loaded")
	c.RecordTransition("core:dms", "loaded")
	assert.EqualValues(t, 2, testutil.ToFloat64(c.pluginTransitions.WithLabelValues("core:dms", "loaded")))

	c.SetDiscovered(3)
	assert.EqualValues(t, 3, testutil.ToFloat64(c.pluginsDiscovered))

	c.RecordCapability("command")
	c.RecordCapability("command")
	c.RecordCapability("gateway_listener")
	assert.EqualValues(t, 2, testutil.ToFloat64(c.capabilityRegistrations.WithLabelValues("command")))
	assert.EqualValues(t, 1, testutil.ToFloat64(c.capabilityRegistrations.WithLabelValues("gateway_listener")))

	c.RecordEvent("framework_core_initialized")
	assert.EqualValues(t, 1, testutil.ToFloat64(c.eventsDispatched.WithLabelValues("framework_core_initialized")))

	c.RecordCommand("dm", "core:dms")
	assert.EqualValues(t, 1, testutil.ToFloat64(c.commandsTotal.WithLabelValues("dm", "core:dms")))
}

func TestCollector_Histogram(t *testing.T) {
	c := testCollector(t)
	c.ObserveLifecycle("preload", 20*time.Millisecond)
	require.EqualValues(t, 1, testutil.CollectAndCount(c.lifecycleDuration))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTransition("p", "loaded")
		c.SetDiscovered(1)
		c.ObserveLifecycle("load", time.Millisecond)
		c.RecordCapability("command")
		c.RecordEvent("ev")
		c.RecordCommand("cmd", "p")
	})
}
