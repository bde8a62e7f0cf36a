package source

import "moto/internal/datum"

// Prober implements the bandwidth-probing policy of §4.4: when active, it
// ramps a synthetic probe pace up over NumSteps increments towards a target
// derived from the bandwidth gap to the next level.
type Prober struct {
	periodMS int
	numSteps int

	targetPaceBytes  float64
	currentPaceBytes float64
	stepBytes        float64
}

// NewProber creates an inactive Prober ticking at periodMS, ramping over numSteps.
func NewProber(periodMS, numSteps int) *Prober {
	return &Prober{periodMS: periodMS, numSteps: numSteps}
}

// Active reports whether a probe is in progress.
func (p *Prober) Active() bool { return p.targetPaceBytes > 0 }

// StartProbe converts additionalKbps into target_pace_bytes using the
// tick period, sets step = target/numSteps, and current_pace = step (§4.4).
func (p *Prober) StartProbe(additionalKbps float64) {
	bytesPerSec := additionalKbps * 1000.0 / 8.0
	p.targetPaceBytes = bytesPerSec * (float64(p.periodMS) / 1000.0)
	p.stepBytes = p.targetPaceBytes / float64(p.numSteps)
	p.currentPaceBytes = p.stepBytes
}

// IncreasePace advances current_pace by one step if it hasn't reached the
// target; returns false when the caller must synthesize a ProbeDone signal.
func (p *Prober) IncreasePace() bool {
	if !p.Active() {
		return false
	}
	if p.currentPaceBytes < p.targetPaceBytes {
		p.currentPaceBytes += p.stepBytes
		if p.currentPaceBytes > p.targetPaceBytes {
			p.currentPaceBytes = p.targetPaceBytes
		}
		return true
	}
	return false
}

// StopProbe zeroes the target, current-pace and step fields. Idempotent: calling it twice in a row
// has the same effect as calling it once (§8).
func (p *Prober) StopProbe() {
	p.targetPaceBytes = 0
	p.currentPaceBytes = 0
	p.stepBytes = 0
}

// Next returns a BwProbe datum of exactly current_pace bytes, or false if
// the prober is inactive.
func (p *Prober) Next() (datum.Datum, bool) {
	if !p.Active() {
		return datum.Datum{}, false
	}
	return datum.NewBwProbe(int(p.currentPaceBytes)), true
}
