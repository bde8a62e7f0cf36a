// Package pacer implements the Source Pacer of §4.3: a timer-driven
// generator that, on each tick, resolves the next datum's size through the
// Source Adapter, folds in the Prober, and enqueues frames to the Framed
// Sink. It exclusively owns the Source Adapter and Prober (§3 Ownership);
// the Action Dispatcher is invoked from inside this package's own
// goroutine so that ownership is never shared.
package pacer

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"moto/internal/adaptation"
	"moto/internal/datum"
	"moto/internal/dispatch"
	"moto/internal/sink"
	"moto/internal/source"
)

// Pacer ties the Source Adapter, Prober, and Framed Sink together behind a
// single tick loop.
type Pacer struct {
	adapter interface {
		source.Adapter
		source.Experiment
	}
	prober *source.Prober
	sink   *sink.Sink
	log    *zap.Logger

	produced *atomic.Uint64

	actions   <-chan adaptation.Action
	probeDone chan<- adaptation.Signal

	dispatchCfg dispatch.Config

	ticksPerSecondProbe int
	tickCount           uint64
	frameNum            uint64
}

// New builds a Pacer. actions delivers Dispatcher actions one at a time
// (never batched); probeDone is the channel IncreaseProbePace's failure is
// posted on so the orchestrator can fold it back into the merged signal
// stream.
func New(
	adapter interface {
		source.Adapter
		source.Experiment
	},
	prober *source.Prober,
	snk *sink.Sink,
	produced *atomic.Uint64,
	actions <-chan adaptation.Action,
	probeDone chan<- adaptation.Signal,
	dispatchCfg dispatch.Config,
	log *zap.Logger,
) *Pacer {
	periodMS := adapter.PeriodMS()
	ticksPerSecond := 1000 / periodMS
	if ticksPerSecond < 1 {
		ticksPerSecond = 1
	}
	return &Pacer{
		adapter:             adapter,
		prober:              prober,
		sink:                snk,
		log:                 log,
		produced:            produced,
		actions:             actions,
		probeDone:           probeDone,
		dispatchCfg:         dispatchCfg,
		ticksPerSecondProbe: ticksPerSecond,
	}
}

// Run drives the tick loop until ctx is cancelled. Actions are applied
// before the next tick is processed, one at a time (never batched), per §4.3.
func (p *Pacer) Run(ctx context.Context) error {
	periodMS := p.adapter.PeriodMS()
	ticker := time.NewTicker(time.Duration(periodMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case action := <-p.actions:
			if dispatch.Apply(action, p.adapter, p.prober, p.dispatchCfg, p.log) {
				select {
				case p.probeDone <- adaptation.Signal{Kind: adaptation.SigProbeDone}:
				case <-ctx.Done():
					return nil
				}
			}
		case <-ticker.C:
			if err := p.onTick(); err != nil {
				return err
			}
		}
	}
}

// onTick implements the four steps of §4.3.
func (p *Pacer) onTick() error {
	p.tickCount++

	if p.tickCount%uint64(p.ticksPerSecondProbe) == 0 {
		lp := datum.NewLatencyProbe()
		if err := p.enqueue(lp); err != nil {
			return err
		}
	}

	size, level := p.adapter.NextDatumSize()
	if size == 0 {
		return nil
	}

	if probe, ok := p.prober.Next(); ok {
		if err := p.enqueue(probe); err != nil {
			return err
		}
	}

	p.frameNum++
	live := datum.NewLive(level, p.frameNum, size)
	return p.enqueue(live)
}

// enqueue adds d's size to produced bytes before sending, per the ordering
// guarantee of §5 (produced incremented before enqueue), then hands it to
// the sink. When the sink is in backpressure, this tick's frame is simply
// dropped — the Pacer never blocks on the sink (§5).
func (p *Pacer) enqueue(d datum.Datum) error {
	p.produced.Add(uint64(d.Len()))
	err := p.sink.StartSend(d)
	if err == sink.ErrNotReady {
		p.log.Debug("pacer dropped frame under backpressure", zap.Int("size", d.Len()))
		return nil
	}
	if err != nil {
		return err
	}
	return p.sink.PollComplete()
}
