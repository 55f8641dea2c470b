package events

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squidlabs/squidcore/internal/metrics"
)

func TestBus_DispatchOrder(t *testing.T) {
	b := NewBus(nil)
	var calls []string

	b.RegisterListener("boot", func(ctx context.Context, ev Event) error {
		calls = append(calls, "first")
		return nil
	})
	b.RegisterListener("boot", func(ctx context.Context, ev Event) error {
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, b.Dispatch(context.Background(), "boot", nil))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 2, b.ListenerCount("boot"))
}

func TestBus_DataAndIDDelivered(t *testing.T) {
	b := NewBus(nil)
	var got Event
	b.RegisterListener("thing_happened", func(ctx context.Context, ev Event) error {
		got = ev
		return nil
	})

	err := b.Dispatch(context.Background(), "thing_happened", map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "thing_happened", got.Name)
	assert.Equal(t, "v", got.Data["k"])
	assert.NotEmpty(t, got.ID)
}

func TestBus_ErrorsJoinedNotFatal(t *testing.T) {
	b := NewBus(nil)
	boom := errors.New("boom")
	var secondRan bool

	b.RegisterListener("ev", func(ctx context.Context, ev Event) error { return boom })
	b.RegisterListener("ev", func(ctx context.Context, ev Event) error {
		secondRan = true
		return nil
	})

	err := b.Dispatch(context.Background(), "ev", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, secondRan, "a failing listener must not stop later listeners")
}

func TestBus_NoListeners(t *testing.T) {
	b := NewBus(nil)
	assert.NoError(t, b.Dispatch(context.Background(), "nobody_home", nil))
	assert.Zero(t, b.ListenerCount("nobody_home"))
}

// counterValue sums every sample of a counter family in the registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestBus_DispatchCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBus(nil)
	b.SetMetrics(metrics.NewCollector("test", reg, nil))

	require.NoError(t, b.Dispatch(context.Background(), "boot", nil))
	require.NoError(t, b.Dispatch(context.Background(), "boot", nil))
	assert.EqualValues(t, 2, counterValue(t, reg, "test_events_dispatched_total"))
}
