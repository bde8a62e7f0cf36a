// Package dispatch implements the Action Dispatcher of §4.7: translating
// adaptation-machine actions into mutations of the Source Adapter and
// Prober. It is invoked from within the Pacer's own goroutine so the
// exclusive ownership of §3 is never violated by a second mutator.
package dispatch

import (
	"go.uber.org/zap"

	"moto/internal/adaptation"
	"moto/internal/source"
)

// Config holds the tunables §4.7 names: the conservative-rate factor K and
// the probe-extra multiplier.
type Config struct {
	ConservativeRateFactor float64
	ProbeExtra             float64
}

// Apply performs exactly the mutation named for action.Kind (§4.7). It
// returns true if IncreaseProbePace found the prober already at its
// target — the caller must then synthesize a ProbeDone signal back into
// the merged signal stream.
func Apply(action adaptation.Action, adapter source.Adapter, prober *source.Prober, cfg Config, log *zap.Logger) (probeDone bool) {
	switch action.Kind {
	case adaptation.ActionNoOp:
		// nothing.

	case adaptation.ActionAdjustConfig:
		prober.StopProbe()
		conservative := cfg.ConservativeRateFactor * action.RateKbps
		adapter.Adapt(conservative)
		log.Debug("dispatch adjust_config", zap.Float64("rateKbps", action.RateKbps), zap.Float64("conservativeKbps", conservative), zap.Int("level", adapter.CurrentLevel()))

	case adaptation.ActionAdvanceConfig:
		prober.StopProbe()
		adapter.Advance()
		log.Debug("dispatch advance_config", zap.Int("level", adapter.CurrentLevel()))

	case adaptation.ActionStartProbe:
		delta, ok := adapter.NextRateDelta()
		if !ok {
			// Already at max level: StartProbe from here is impossible per §4.8; no-op.
			log.Warn("dispatch start_probe at max level, ignoring")
			return false
		}
		prober.StartProbe(cfg.ProbeExtra * delta)
		log.Debug("dispatch start_probe", zap.Float64("targetKbps", cfg.ProbeExtra*delta))

	case adaptation.ActionIncreaseProbePace:
		if !prober.IncreasePace() {
			return true
		}

	case adaptation.ActionStopProbe:
		prober.StopProbe()
	}
	return false
}
