package adaptation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"moto/internal/rterr"
)

func TestStartupTolerateCongestionBeforeDegrade(t *testing.T) {
	m := New(3, 3)
	require.Equal(t, Startup, m.State())

	for i := 0; i < 2; i++ {
		action, err := m.Transit(Signal{Kind: SigQueueCongest, RateKbps: 1000}, false)
		require.NoError(t, err)
		require.Equal(t, ActionAdjustConfig, action.Kind)
		require.Equal(t, Startup, m.State())
	}

	action, err := m.Transit(Signal{Kind: SigQueueCongest, RateKbps: 1000}, false)
	require.NoError(t, err)
	require.Equal(t, ActionAdjustConfig, action.Kind)
	require.Equal(t, Degrade, m.State())
}

func TestStartupAdvancesUntilMaxThenSteady(t *testing.T) {
	m := New(3, 3)
	action, err := m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.NoError(t, err)
	require.Equal(t, ActionAdvanceConfig, action.Kind)
	require.Equal(t, Startup, m.State())

	action, err = m.Transit(Signal{Kind: SigQueueEmpty}, true)
	require.NoError(t, err)
	require.Equal(t, ActionNoOp, action.Kind)
	require.Equal(t, Steady, m.State())
}

func TestDegradeReturnsToSteadyOnEmpty(t *testing.T) {
	m := New(1, 3)
	_, err := m.Transit(Signal{Kind: SigQueueCongest}, false)
	require.NoError(t, err)
	require.Equal(t, Degrade, m.State())

	action, err := m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.NoError(t, err)
	require.Equal(t, ActionNoOp, action.Kind)
	require.Equal(t, Steady, m.State())
}

func TestSteadyRequiresConsecutiveEmptyBeforeProbe(t *testing.T) {
	m := New(1, 2)
	_, _ = m.Transit(Signal{Kind: SigQueueCongest}, false) // -> Degrade
	_, _ = m.Transit(Signal{Kind: SigQueueEmpty}, false)   // -> Steady

	action, err := m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.NoError(t, err)
	require.Equal(t, ActionNoOp, action.Kind)
	require.Equal(t, Steady, m.State())

	action, err = m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.NoError(t, err)
	require.Equal(t, ActionStartProbe, action.Kind)
	require.Equal(t, Probe, m.State())
}

func TestSteadyAtMaxNeverProbes(t *testing.T) {
	m := New(1, 1)
	_, _ = m.Transit(Signal{Kind: SigQueueCongest}, false)
	_, _ = m.Transit(Signal{Kind: SigQueueEmpty}, false)

	action, err := m.Transit(Signal{Kind: SigQueueEmpty}, true)
	require.NoError(t, err)
	require.Equal(t, ActionNoOp, action.Kind)
	require.Equal(t, Steady, m.State())
}

func TestProbeLifecycle(t *testing.T) {
	m := New(1, 1)
	_, _ = m.Transit(Signal{Kind: SigQueueCongest}, false)
	_, _ = m.Transit(Signal{Kind: SigQueueEmpty}, false)
	action, _ := m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.Equal(t, ActionStartProbe, action.Kind)
	require.Equal(t, Probe, m.State())

	action, err := m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.NoError(t, err)
	require.Equal(t, ActionIncreaseProbePace, action.Kind)
	require.Equal(t, Probe, m.State())

	action, err = m.Transit(Signal{Kind: SigProbeDone}, false)
	require.NoError(t, err)
	require.Equal(t, ActionAdvanceConfig, action.Kind)
	require.Equal(t, Steady, m.State())
}

func TestProbeAbortsOnCongestion(t *testing.T) {
	m := New(1, 1)
	_, _ = m.Transit(Signal{Kind: SigQueueCongest}, false)
	_, _ = m.Transit(Signal{Kind: SigQueueEmpty}, false)
	_, _ = m.Transit(Signal{Kind: SigQueueEmpty}, false)
	require.Equal(t, Probe, m.State())

	action, err := m.Transit(Signal{Kind: SigRemoteCongest, RateKbps: 500}, false)
	require.NoError(t, err)
	require.Equal(t, ActionStopProbe, action.Kind)
	require.Equal(t, Steady, m.State())
}

func TestUnhandledPairIsControlPlaneError(t *testing.T) {
	m := New(1, 1)
	_, err := m.Transit(Signal{Kind: SigProbeDone}, false)
	require.Error(t, err)
	kind, ok := rterr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, rterr.ControlPlane, kind)
}
