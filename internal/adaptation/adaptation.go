// Package adaptation implements the four-state adaptation machine of §4.6:
// a pure function (state, signal, at_max_level) -> (state', action), plus
// the startup/steady signal-counting policies named in the table's
// footnotes.
package adaptation

import "moto/internal/rterr"

// SignalKind discriminates the signal alphabet consumed by the machine.
type SignalKind int

const (
	// SigQueueCongest carries the local Monitor's rate/latency estimate.
	SigQueueCongest SignalKind = iota
	// SigQueueEmpty indicates the local queue has been empty for long enough.
	SigQueueEmpty
	// SigRemoteCongest carries the remote peer's reported rate/latency.
	SigRemoteCongest
	// SigProbeDone indicates the Prober has exhausted its ramp.
	SigProbeDone
)

// Signal is one item of the merged signal stream (§2: local_monitor ⊕
// probe_done ⊕ remote_reports).
type Signal struct {
	Kind      SignalKind
	RateKbps  float64
	LatencyMS float64
}

// ActionKind discriminates the action alphabet the machine produces.
type ActionKind int

const (
	// ActionNoOp performs no mutation.
	ActionNoOp ActionKind = iota
	// ActionAdjustConfig conservatively lowers the level to fit RateKbps.
	ActionAdjustConfig
	// ActionAdvanceConfig raises the level by one.
	ActionAdvanceConfig
	// ActionStartProbe begins a bandwidth probe ramp.
	ActionStartProbe
	// ActionIncreaseProbePace advances the active probe's pace by one step.
	ActionIncreaseProbePace
	// ActionStopProbe halts any active probe.
	ActionStopProbe
)

// Action is the single mutation the Dispatcher must apply before the next
// signal is processed.
type Action struct {
	Kind     ActionKind
	RateKbps float64
}

// State is one of the four states named in §2/§4.6.
type State int

const (
	// Startup is the initial state: ramp the level up until the queue empties at max, or congestion hits.
	Startup State = iota
	// Degrade responds to repeated congestion by lowering the level.
	Degrade
	// Steady holds the level, probing for headroom once the queue has been reliably empty.
	Steady
	// Probe is actively testing for additional bandwidth.
	Probe
)

func (s State) String() string {
	switch s {
	case Startup:
		return "startup"
	case Degrade:
		return "degrade"
	case Steady:
		return "steady"
	case Probe:
		return "probe"
	default:
		return "unknown"
	}
}

// Machine owns the mutable adaptation state plus the signal-counting
// policies from the footnotes of §4.6's table: Startup stays put on the
// first StartupCongestEnough-1 congestion signals and transits to Degrade on
// the StartupCongestEnough-th, and Steady starts a probe on the
// SteadyEnough-th consecutive QueueEmpty signal.
type Machine struct {
	state State

	startupCongestEnough int
	startupCongestCount  int

	steadyEnough     int
	steadyEmptyCount int
}

// New creates a Machine in Startup state with the given tolerance counts.
func New(startupCongestEnough, steadyEnough int) *Machine {
	return &Machine{
		state:                Startup,
		startupCongestEnough: startupCongestEnough,
		steadyEnough:         steadyEnough,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Transit folds one signal plus the "at max level?" predicate into the next
// state and the action the Dispatcher must apply. Any (state, signal) pair
// not named in §4.6's table is a programming error and is surfaced as a
// ControlPlane error, matching §7's "fatal to the process" policy.
func (m *Machine) Transit(sig Signal, atMax bool) (Action, error) {
	isCongest := sig.Kind == SigQueueCongest || sig.Kind == SigRemoteCongest

	switch m.state {
	case Startup:
		switch {
		case sig.Kind == SigQueueEmpty && !atMax:
			return Action{Kind: ActionAdvanceConfig}, nil
		case sig.Kind == SigQueueEmpty && atMax:
			m.state = Steady
			m.steadyEmptyCount = 0
			return Action{Kind: ActionNoOp}, nil
		case isCongest:
			m.startupCongestCount++
			if m.startupCongestCount < m.startupCongestEnough {
				// Transient TCP ramp-up: tolerate without leaving Startup.
				return Action{Kind: ActionAdjustConfig, RateKbps: sig.RateKbps}, nil
			}
			m.state = Degrade
			return Action{Kind: ActionAdjustConfig, RateKbps: sig.RateKbps}, nil
		}

	case Degrade:
		switch {
		case isCongest:
			return Action{Kind: ActionAdjustConfig, RateKbps: sig.RateKbps}, nil
		case sig.Kind == SigQueueEmpty:
			m.state = Steady
			m.steadyEmptyCount = 0
			return Action{Kind: ActionNoOp}, nil
		}

	case Steady:
		switch {
		case isCongest:
			m.state = Degrade
			return Action{Kind: ActionAdjustConfig, RateKbps: sig.RateKbps}, nil
		case sig.Kind == SigQueueEmpty && atMax:
			m.steadyEmptyCount = 0
			return Action{Kind: ActionNoOp}, nil
		case sig.Kind == SigQueueEmpty && !atMax:
			m.steadyEmptyCount++
			if m.steadyEmptyCount < m.steadyEnough {
				return Action{Kind: ActionNoOp}, nil
			}
			m.steadyEmptyCount = 0
			m.state = Probe
			return Action{Kind: ActionStartProbe}, nil
		}

	case Probe:
		switch {
		case isCongest:
			m.state = Steady
			m.steadyEmptyCount = 0
			return Action{Kind: ActionStopProbe}, nil
		case sig.Kind == SigQueueEmpty:
			return Action{Kind: ActionIncreaseProbePace}, nil
		case sig.Kind == SigProbeDone:
			m.state = Steady
			m.steadyEmptyCount = 0
			return Action{Kind: ActionAdvanceConfig}, nil
		}
	}

	return Action{}, rterr.Wrap(rterr.ControlPlane, unhandledErr{state: m.state, signal: sig}, "unhandled (state, signal)")
}

type unhandledErr struct {
	state  State
	signal Signal
}

func (e unhandledErr) Error() string {
	return "adaptation: unhandled state=" + e.state.String()
}
