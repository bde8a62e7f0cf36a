// Package receiver implements the server-side Framed Source, Receiver
// Monitor, and Reporter of §4.9 and §2: decode inbound datums, classify
// them, track goodput/throughput/latency in small streaming-stat windows,
// and emit a ReceiverReport back over the same connection whenever latency
// significantly exceeds an expected model.
package receiver

import (
	"bytes"
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"moto/internal/analytics"
	"moto/internal/datum"
	"moto/internal/framing"
	"moto/internal/statwin"
)

// MonitorConfig holds the 1-Hz tick's reporting knobs.
type MonitorConfig struct {
	TickInterval      time.Duration
	MinReportInterval time.Duration
	LatencyWindowSize int
}

// DefaultMonitorConfig matches §4.9: a 1-Hz timer and a report at most once
// per 500 ms.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{TickInterval: time.Second, MinReportInterval: 500 * time.Millisecond, LatencyWindowSize: 16}
}

// monitor tracks per-interval goodput/throughput byte totals and a running
// minimum-net-latency window, matching bw_monitor.rs's BwMonitor/LatencyMonitor split.
type monitor struct {
	liveBytes uint64
	allBytes  uint64

	goodputKbps    float64
	throughputKbps float64

	netLatencyMS *statwin.Window
}

func newMonitor(cfg MonitorConfig) *monitor {
	return &monitor{netLatencyMS: statwin.NewWindow(0, cfg.LatencyWindowSize)}
}

func (m *monitor) recordLive(size int) {
	m.liveBytes += uint64(size)
	m.allBytes += uint64(size)
}

func (m *monitor) recordProbe(size int) {
	m.allBytes += uint64(size)
}

func (m *monitor) recordNetLatency(ms float64) {
	m.netLatencyMS.Add(ms)
}

// tick converts the accumulated byte totals into kbps rate estimates over
// intervalMS and resets the totals.
func (m *monitor) tick(intervalMS float64) {
	m.goodputKbps = float64(m.liveBytes) * 8 / intervalMS
	m.throughputKbps = float64(m.allBytes) * 8 / intervalMS
	m.liveBytes = 0
	m.allBytes = 0
}

// reporter consults the latency model of §4.9 and rate-limits reports.
type reporter struct {
	minInterval  time.Duration
	lastReportAt time.Time
}

func newReporter(cfg MonitorConfig) *reporter {
	return &reporter{minInterval: cfg.MinReportInterval}
}

// toleranceFactor implements the step-wise tolerance of §4.9.
func toleranceFactor(idealMS float64) float64 {
	switch {
	case idealMS < 100:
		return 10
	case idealMS < 200:
		return 5
	case idealMS < 300:
		return 4
	case idealMS < 500:
		return 3
	default:
		return 1.5
	}
}

// shouldReport decides whether observedLatencyMS exceeds the tolerance
// bound around idealMS, and whether the rate limit allows a report now.
func (r *reporter) shouldReport(observedLatencyMS, idealMS float64, now time.Time) bool {
	if now.Sub(r.lastReportAt) < r.minInterval {
		return false
	}
	if observedLatencyMS <= toleranceFactor(idealMS)*idealMS {
		return false
	}
	r.lastReportAt = now
	return true
}

// Core is one connection's server-side state: decode loop, monitor,
// reporter, and an optional analytics accuracy join.
type Core struct {
	conn  net.Conn
	log   *zap.Logger
	cfg   MonitorConfig
	mon   *monitor
	rep   *reporter
	stats *analytics.Analytics

	lastLiveSize      int
	lastLiveLatencyMS float64
}

// New builds a Core for conn. stats may be nil if no stat_path was configured.
func New(conn net.Conn, cfg MonitorConfig, stats *analytics.Analytics, log *zap.Logger) *Core {
	return &Core{
		conn:  conn,
		log:   log,
		cfg:   cfg,
		mon:   newMonitor(cfg),
		rep:   newReporter(cfg),
		stats: stats,
	}
}

// Run decodes and handles frames until ctx is cancelled or the connection closes.
func (c *Core) Run(ctx context.Context) error {
	reader := framing.NewReader(ctx, c.conn)
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-reader.Err:
			return err
		case d, ok := <-reader.Datums:
			if !ok {
				return nil
			}
			c.handle(d)
		case now := <-ticker.C:
			c.mon.tick(float64(c.cfg.TickInterval.Milliseconds()))
			c.maybeReport(now)
		}
	}
}

func (c *Core) handle(d datum.Datum) {
	now := time.Now().UTC()
	switch d.Kind {
	case datum.KindLive:
		c.mon.recordLive(d.Len())
		latencyMS := float64(now.Sub(d.SentAt).Microseconds()) / 1000.0
		c.lastLiveSize = d.Len()
		c.lastLiveLatencyMS = latencyMS
		if c.stats != nil {
			c.stats.Add(d.FrameNum, d.Level)
		}
		c.log.Debug("receiver live frame",
			zap.Int("level", d.Level),
			zap.Uint64("frameNum", d.FrameNum),
			zap.Float64("latencyMs", latencyMS),
			zap.Int("size", d.Len()))
		c.maybeReport(now)
	case datum.KindBwProbe:
		c.mon.recordProbe(d.Len())
	case datum.KindLatencyProbe:
		latencyMS := float64(now.Sub(d.SentAt).Microseconds()) / 1000.0
		c.mon.recordNetLatency(latencyMS)
	case datum.KindReceiverReport:
		c.log.Warn("receiver: unexpected ReceiverReport on inbound frames, dropping")
	}
}

func (c *Core) maybeReport(now time.Time) {
	if c.mon.goodputKbps <= 0 {
		return
	}
	idealMS := c.mon.netLatencyMS.Min() + float64(c.lastLiveSize)*8/c.mon.goodputKbps
	if !c.rep.shouldReport(c.lastLiveLatencyMS, idealMS, now) {
		return
	}
	report := datum.NewReceiverReport(datum.Report{
		LatencyMS:      c.lastLiveLatencyMS,
		GoodputKbps:    c.mon.goodputKbps,
		ThroughputKbps: c.mon.throughputKbps,
	})
	var buf bytes.Buffer
	if err := datum.Encode(report, &buf); err != nil {
		c.log.Warn("receiver: failed to encode report", zap.Error(err))
		return
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		c.log.Warn("receiver: failed to write report", zap.Error(err))
	}
}
