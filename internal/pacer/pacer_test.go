package pacer

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"moto/internal/adaptation"
	"moto/internal/dispatch"
	"moto/internal/sink"
	"moto/internal/source"
)

type fakeAdapter struct {
	level    int
	max      bool
	periodMS int
	size     int
}

func (a *fakeAdapter) Adapt(rateKbps float64)         {}
func (a *fakeAdapter) Advance()                       { a.level++ }
func (a *fakeAdapter) CurrentLevel() int              { return a.level }
func (a *fakeAdapter) IsMax() bool                    { return a.max }
func (a *fakeAdapter) PeriodMS() int                  { return a.periodMS }
func (a *fakeAdapter) NextRateDelta() (float64, bool) { return 0, !a.max }
func (a *fakeAdapter) NextDatumSize() (int, int)      { return a.size, a.level }

type fakeConn struct {
	net.Conn
	buf bytes.Buffer
}

func (f *fakeConn) Write(b []byte) (int, error) { return f.buf.Write(b) }

func TestOnTickEnqueuesLiveFrame(t *testing.T) {
	adapter := &fakeAdapter{periodMS: 100, size: 64}
	prober := source.NewProber(100, 4)
	conn := &fakeConn{}
	consumed := atomic.NewUint64(0)
	snk := sink.New(conn, consumed)
	produced := atomic.NewUint64(0)

	actions := make(chan adaptation.Action)
	probeDone := make(chan adaptation.Signal, 1)
	p := New(adapter, prober, snk, produced, actions, probeDone, dispatch.Config{}, zap.NewNop())

	require.NoError(t, p.onTick())
	require.Equal(t, uint64(1), p.frameNum)
	require.Greater(t, produced.Load(), uint64(0))
}

func TestOnTickSkipsZeroSizeFrame(t *testing.T) {
	adapter := &fakeAdapter{periodMS: 100, size: 0}
	prober := source.NewProber(100, 4)
	conn := &fakeConn{}
	consumed := atomic.NewUint64(0)
	snk := sink.New(conn, consumed)
	produced := atomic.NewUint64(0)

	actions := make(chan adaptation.Action)
	probeDone := make(chan adaptation.Signal, 1)
	p := New(adapter, prober, snk, produced, actions, probeDone, dispatch.Config{}, zap.NewNop())

	require.NoError(t, p.onTick())
	require.Equal(t, uint64(0), p.frameNum)
	require.Equal(t, uint64(0), produced.Load())
}

func TestOnTickIncludesLatencyProbeOnSchedule(t *testing.T) {
	adapter := &fakeAdapter{periodMS: 1000, size: 32} // ticksPerSecondProbe == 1: every tick
	prober := source.NewProber(1000, 4)
	conn := &fakeConn{}
	consumed := atomic.NewUint64(0)
	snk := sink.New(conn, consumed)
	produced := atomic.NewUint64(0)

	actions := make(chan adaptation.Action)
	probeDone := make(chan adaptation.Signal, 1)
	p := New(adapter, prober, snk, produced, actions, probeDone, dispatch.Config{}, zap.NewNop())

	require.NoError(t, p.onTick())
	// Both the latency probe and the live frame should have added to produced.
	require.Greater(t, produced.Load(), uint64(32))
}
