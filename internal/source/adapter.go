// Package source implements the Source Adapter and Prober of §4.3/§4.4/§4.8:
// the capability sets the Pacer is built against (adaptation + experiment),
// and a concrete video-trace realization of both.
package source

import "moto/internal/profile"

// Adapter is the adaptation capability set of §9: the operations the
// Dispatcher drives in response to adaptation-machine actions. Realized as
// a single interface rather than a class hierarchy.
type Adapter interface {
	// Adapt lowers (only) the current level to fit rateKbps.
	Adapt(rateKbps float64)
	// Advance raises the current level by one, if possible.
	Advance()
	// CurrentLevel returns the current level index.
	CurrentLevel() int
	// IsMax reports whether the current level is the highest available.
	IsMax() bool
	// PeriodMS returns the Pacer's tick period for this source.
	PeriodMS() int
	// NextRateDelta returns the bandwidth gap to the next level, and false at the max level.
	NextRateDelta() (float64, bool)
}

// Experiment is the second capability set of §9: resolving the byte-size of
// the next datum for the currently selected level, without touching any
// real encoder.
type Experiment interface {
	// NextDatumSize returns the size in bytes of the next datum, and the
	// level it was generated at. A size of 0 means "skip this tick".
	NextDatumSize() (size int, level int)
}

// simpleAdapter implements Adapter over a profile.Simple, shared by every
// concrete source so the binary-search/sticky logic lives in one place.
type simpleAdapter struct {
	simple   *profile.Simple
	periodMS int
}

func (a *simpleAdapter) Adapt(rateKbps float64)         { a.simple.AdjustLevel(rateKbps) }
func (a *simpleAdapter) Advance()                       { a.simple.AdvanceLevel() }
func (a *simpleAdapter) CurrentLevel() int              { return a.simple.Current() }
func (a *simpleAdapter) IsMax() bool                    { return a.simple.IsMax() }
func (a *simpleAdapter) PeriodMS() int                  { return a.periodMS }
func (a *simpleAdapter) NextRateDelta() (float64, bool) { return a.simple.NextRateDelta() }
