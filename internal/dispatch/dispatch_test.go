package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moto/internal/adaptation"
	"moto/internal/profile"
	"moto/internal/source"
)

func newTestAdapter(t *testing.T) *testAdapter {
	t.Helper()
	records := []profile.Record[int]{
		{Bandwidth: 100, Config: 0},
		{Bandwidth: 200, Config: 1},
		{Bandwidth: 400, Config: 2},
	}
	p := profile.New(records, 3)
	return &testAdapter{p: p}
}

type testAdapter struct {
	p *profile.Profile[int]
}

func (a *testAdapter) Adapt(rateKbps float64)         { a.p.AdjustConfig(rateKbps) }
func (a *testAdapter) Advance()                       { a.p.AdvanceConfig() }
func (a *testAdapter) CurrentLevel() int              { return a.p.CurrentLevel() }
func (a *testAdapter) IsMax() bool                    { return a.p.IsMax() }
func (a *testAdapter) PeriodMS() int                  { return 100 }
func (a *testAdapter) NextRateDelta() (float64, bool) { return a.p.NextRateDelta() }

func TestApplyAdjustConfigUsesConservativeFactor(t *testing.T) {
	adapter := newTestAdapter(t)
	adapter.Advance()
	adapter.Advance()
	require.Equal(t, 2, adapter.CurrentLevel())
	prober := source.NewProber(100, 4)
	cfg := Config{ConservativeRateFactor: 0.5, ProbeExtra: 1.0}

	done := Apply(adaptation.Action{Kind: adaptation.ActionAdjustConfig, RateKbps: 400}, adapter, prober, cfg, zap.NewNop())
	require.False(t, done)
	// adapter.Adapt was called with 0.5*400=200 -> level for bw=200 is index 1,
	// below the current level 2.
	require.Equal(t, 1, adapter.CurrentLevel())
}

func TestApplyAdvanceConfig(t *testing.T) {
	adapter := newTestAdapter(t)
	prober := source.NewProber(100, 4)
	Apply(adaptation.Action{Kind: adaptation.ActionAdvanceConfig}, adapter, prober, Config{}, zap.NewNop())
	require.Equal(t, 1, adapter.CurrentLevel())
}

func TestApplyStartProbeAtMaxNoOps(t *testing.T) {
	adapter := newTestAdapter(t)
	adapter.Advance()
	adapter.Advance()
	require.True(t, adapter.IsMax())

	prober := source.NewProber(100, 4)
	done := Apply(adaptation.Action{Kind: adaptation.ActionStartProbe}, adapter, prober, Config{ProbeExtra: 1.05}, zap.NewNop())
	require.False(t, done)
	require.False(t, prober.Active())
}

func TestApplyStartProbeStartsRamp(t *testing.T) {
	adapter := newTestAdapter(t)
	prober := source.NewProber(100, 4)
	Apply(adaptation.Action{Kind: adaptation.ActionStartProbe}, adapter, prober, Config{ProbeExtra: 1.05}, zap.NewNop())
	require.True(t, prober.Active())
}

func TestApplyIncreaseProbePaceSignalsDoneAtTarget(t *testing.T) {
	adapter := newTestAdapter(t)
	prober := source.NewProber(100, 1)
	prober.StartProbe(100)

	done := Apply(adaptation.Action{Kind: adaptation.ActionIncreaseProbePace}, adapter, prober, Config{}, zap.NewNop())
	require.True(t, done)
}

func TestApplyStopProbe(t *testing.T) {
	adapter := newTestAdapter(t)
	prober := source.NewProber(100, 4)
	prober.StartProbe(100)
	Apply(adaptation.Action{Kind: adaptation.ActionStopProbe}, adapter, prober, Config{}, zap.NewNop())
	require.False(t, prober.Active())
}
