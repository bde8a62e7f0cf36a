// Package monitor implements the local bandwidth/latency Monitor of §4.5: a
// periodic task that diffs the produced/consumed byte counters to estimate
// outgoing rate and queue occupancy, emitting QueueCongest/QueueEmpty
// signals through a filtered stream.
package monitor

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"moto/internal/adaptation"
)

// Counters are the two atomic byte counters shared between the Pacer
// (Produced) and the Framed Sink (Consumed) — the only shared-mutable
// state in the core (§3 Ownership).
type Counters struct {
	Produced atomic.Uint64
	Consumed atomic.Uint64
}

// NewCounters returns a fresh, zeroed pair, created per connection rather
// than as a module-level singleton (§9).
func NewCounters() *Counters { return &Counters{} }

// Config holds the Monitor's tunable thresholds (§9 Open Questions: these
// must be configuration knobs, not hard-coded constants).
type Config struct {
	IntervalMS         int
	CongestLatencyMS   float64
	AlphaRate          float64
	SmoothAlpha        float64
	QueueEmptyRequired int
}

// Monitor fires every Config.IntervalMS, estimating outgoing rate and queue
// occupancy from Counters, and emits signals on Signals() when a threshold
// is crossed. Ticks that don't cross thresholds emit nothing (§4.5).
type Monitor struct {
	cfg      Config
	counters *Counters
	log      *zap.Logger

	queuedBytes  float64
	smoothedRate float64
	emptyTicks   int

	signals chan adaptation.Signal
}

// New creates a Monitor over counters with the given tuning.
func New(counters *Counters, cfg Config, log *zap.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		counters: counters,
		log:      log,
		signals:  make(chan adaptation.Signal, 64),
	}
}

// Signals returns the channel signals are emitted on. It is unbounded in
// spirit (buffered generously) so the Monitor never blocks on the
// consumer (§5).
func (m *Monitor) Signals() <-chan adaptation.Signal { return m.signals }

// Run ticks until ctx is cancelled, closing Signals() on return.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.signals)
	ticker := time.NewTicker(time.Duration(m.cfg.IntervalMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sig, ok := m.tick(); ok {
				select {
				case m.signals <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// tick performs one fire of §4.5's steps 1-7, returning the emitted signal
// if any.
func (m *Monitor) tick() (adaptation.Signal, bool) {
	produced := m.counters.Produced.Swap(0)
	consumed := m.counters.Consumed.Swap(0)

	m.queuedBytes += float64(produced) - float64(consumed)
	if m.queuedBytes < 0 {
		m.queuedBytes = 0
	}

	m.smoothedRate = m.smoothedRate*m.cfg.SmoothAlpha + float64(consumed)*(1-m.cfg.SmoothAlpha)

	rateKbps := m.smoothedRate * 8 / float64(m.cfg.IntervalMS)
	var latencyMS float64
	if rateKbps > 0 {
		latencyMS = m.queuedBytes * 8 / rateKbps
	}

	if latencyMS > m.cfg.CongestLatencyMS {
		m.emptyTicks = 0
		sig := adaptation.Signal{Kind: adaptation.SigQueueCongest, RateKbps: m.cfg.AlphaRate * rateKbps, LatencyMS: latencyMS}
		m.log.Debug("monitor congest",
			zap.Float64("rateKbps", sig.RateKbps),
			zap.Float64("latencyMs", latencyMS),
			zap.Uint64("produced", produced),
			zap.Uint64("consumed", consumed))
		return sig, true
	}

	m.emptyTicks++
	if m.emptyTicks > m.cfg.QueueEmptyRequired {
		m.emptyTicks = 0
		m.log.Debug("monitor empty")
		return adaptation.Signal{Kind: adaptation.SigQueueEmpty}, true
	}

	return adaptation.Signal{}, false
}
