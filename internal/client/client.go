// Package client implements the client-side core of §2/§3: dial the
// server, wire the Source Pacer + Framed Sink + local Monitor + Remote
// Report Reader together, and drive the merged signal stream (local_monitor
// ⊕ probe_done ⊕ remote_reports) through the adaptation machine.
package client

import (
	"context"
	"net"
	"strconv"

	"go.uber.org/zap"

	"moto/internal/adaptation"
	"moto/internal/config"
	"moto/internal/datum"
	"moto/internal/dispatch"
	"moto/internal/framing"
	"moto/internal/monitor"
	"moto/internal/pacer"
	"moto/internal/sink"
	"moto/internal/source"
)

// Core is one connection's client-side state.
type Core struct {
	conn net.Conn
	log  *zap.Logger
	cfg  *config.Setting

	videoSource *source.VideoSource
	prober      *source.Prober
	counters    *monitor.Counters
	sink        *sink.Sink
	mon         *monitor.Monitor
	machine     *adaptation.Machine

	actions   chan adaptation.Action
	probeDone chan adaptation.Signal
}

// Dial connects to cfg.Server:cfg.Port using the fastest-wins racer and
// builds a Core ready to Run.
func Dial(ctx context.Context, cfg *config.Setting, log *zap.Logger) (*Core, error) {
	addr := net.JoinHostPort(cfg.Server, portString(cfg.Port))
	conn, err := dialFast(ctx, addr)
	if err != nil {
		return nil, err
	}

	vs, err := source.NewVideoSource(cfg.ProfilePath, cfg.SourcePath, cfg.Tuning.MaxSticky, cfg.Tuning.MonitorIntervalMS)
	if err != nil {
		conn.Close()
		return nil, err
	}

	counters := monitor.NewCounters()
	return &Core{
		conn:        conn,
		log:         log,
		cfg:         cfg,
		videoSource: vs,
		prober:      source.NewProber(cfg.Tuning.MonitorIntervalMS, cfg.Tuning.NumProbeSteps),
		counters:    counters,
		sink:        sink.New(conn, &counters.Consumed),
		mon: monitor.New(counters, monitor.Config{
			IntervalMS:         cfg.Tuning.MonitorIntervalMS,
			CongestLatencyMS:   cfg.Tuning.CongestLatencyMS,
			AlphaRate:          cfg.Tuning.AlphaRate,
			SmoothAlpha:        cfg.Tuning.SmoothAlpha,
			QueueEmptyRequired: cfg.Tuning.QueueEmptyRequired,
		}, log),
		machine:   adaptation.New(cfg.Tuning.StartupCongestEnough, cfg.Tuning.SteadyEnough),
		actions:   make(chan adaptation.Action),
		probeDone: make(chan adaptation.Signal, 1),
	}, nil
}

func portString(p uint16) string {
	return strconv.Itoa(int(p))
}

// Run starts the Pacer, Monitor, and Remote Report Reader, then drives the
// merged signal stream through the adaptation machine until ctx is
// cancelled or the connection fails.
func (c *Core) Run(ctx context.Context) error {
	defer c.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pacer.New(c.videoSource, c.prober, c.sink, &c.counters.Produced, c.actions, c.probeDone,
		dispatch.Config{ConservativeRateFactor: c.cfg.Tuning.ConservativeRateFactor, ProbeExtra: c.cfg.Tuning.ProbeExtra}, c.log)

	pacerErr := make(chan error, 1)
	go func() { pacerErr <- p.Run(ctx) }()
	go c.mon.Run(ctx)

	reader := framing.NewReader(ctx, c.conn)
	remoteReports := translateReports(reader.Datums)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-pacerErr:
			return err
		case err := <-reader.Err:
			return err
		case sig, ok := <-c.mon.Signals():
			if !ok {
				return nil
			}
			if err := c.apply(ctx, sig); err != nil {
				return err
			}
		case sig, ok := <-c.probeDone:
			if !ok {
				return nil
			}
			if err := c.apply(ctx, sig); err != nil {
				return err
			}
		case sig, ok := <-remoteReports:
			if !ok {
				return nil
			}
			if err := c.apply(ctx, sig); err != nil {
				return err
			}
		}
	}
}

// apply folds one signal through the adaptation machine and forwards the
// resulting action to the Pacer.
func (c *Core) apply(ctx context.Context, sig adaptation.Signal) error {
	action, err := c.machine.Transit(sig, c.videoSource.IsMax())
	if err != nil {
		return err
	}
	select {
	case c.actions <- action:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// translateReports turns decoded ReceiverReport datums into RemoteCongest
// signals, closing the output channel when the input does.
func translateReports(in <-chan datum.Datum) <-chan adaptation.Signal {
	out := make(chan adaptation.Signal)
	go func() {
		defer close(out)
		for d := range in {
			if d.Kind != datum.KindReceiverReport {
				continue
			}
			out <- adaptation.Signal{
				Kind:      adaptation.SigRemoteCongest,
				RateKbps:  d.Report.GoodputKbps,
				LatencyMS: d.Report.LatencyMS,
			}
		}
	}()
	return out
}
