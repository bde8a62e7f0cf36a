package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moto/internal/adaptation"
)

func TestTickEmitsQueueCongest(t *testing.T) {
	counters := NewCounters()
	counters.Produced.Store(150000)
	counters.Consumed.Store(50000)

	m := New(counters, Config{
		IntervalMS:         100,
		CongestLatencyMS:   1.0,
		AlphaRate:          0.9,
		SmoothAlpha:        0,
		QueueEmptyRequired: 20,
	}, zap.NewNop())

	sig, ok := m.tick()
	require.True(t, ok)
	require.Equal(t, adaptation.SigQueueCongest, sig.Kind)
	require.InDelta(t, 3600.0, sig.RateKbps, 0.001)
	require.InDelta(t, 200.0, sig.LatencyMS, 0.001)
}

func TestTickEmitsQueueEmptyAfterRequiredTicks(t *testing.T) {
	counters := NewCounters()
	m := New(counters, Config{
		IntervalMS:         100,
		CongestLatencyMS:   1.0,
		AlphaRate:          0.9,
		SmoothAlpha:        0,
		QueueEmptyRequired: 2,
	}, zap.NewNop())

	_, ok := m.tick()
	require.False(t, ok)
	_, ok = m.tick()
	require.False(t, ok)
	sig, ok := m.tick()
	require.True(t, ok)
	require.Equal(t, adaptation.SigQueueEmpty, sig.Kind)
}

func TestQueuedBytesNeverGoNegative(t *testing.T) {
	counters := NewCounters()
	counters.Consumed.Store(1000)
	m := New(counters, Config{IntervalMS: 100, CongestLatencyMS: 1.0, AlphaRate: 0.9, SmoothAlpha: 0, QueueEmptyRequired: 100}, zap.NewNop())
	m.tick()
	require.GreaterOrEqual(t, m.queuedBytes, 0.0)
}
