package sink

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"moto/internal/datum"
)

// fakeConn is a minimal non-blocking net.Conn whose Write always succeeds
// immediately into an in-memory buffer, used to exercise the Sink without a
// real socket.
type fakeConn struct {
	net.Conn
	written bytes.Buffer
}

func (f *fakeConn) Write(b []byte) (int, error) {
	return f.written.Write(b)
}

func TestStartSendThenPollCompleteWritesThrough(t *testing.T) {
	conn := &fakeConn{}
	consumed := atomic.NewUint64(0)
	s := New(conn, consumed)

	d := datum.NewLive(0, 1, 64)
	require.NoError(t, s.StartSend(d))
	require.Greater(t, s.Buffered(), 0)

	require.NoError(t, s.PollComplete())
	require.Equal(t, 0, s.Buffered())
	require.Equal(t, uint64(conn.written.Len()), consumed.Load())
}

func TestStartSendBackpressure(t *testing.T) {
	conn := &fakeConn{}
	consumed := atomic.NewUint64(0)
	s := New(conn, consumed)
	s.threshold = 8 // force backpressure quickly

	// First send: buffer below threshold, so the frame is only encoded, which
	// takes the buffer over the threshold.
	big := datum.NewLive(0, 1, 1024)
	require.NoError(t, s.StartSend(big))
	firstLen := s.Buffered()
	require.GreaterOrEqual(t, firstLen, s.threshold)

	// Second send: the buffer is at/above threshold, so StartSend flushes it
	// through PollComplete first. conn always accepts writes, so the flush
	// drains fully and ErrNotReady is never forced here; afterwards the
	// buffer holds only the second frame.
	second := datum.NewLive(0, 2, 1024)
	require.NoError(t, s.StartSend(second))
	require.Equal(t, uint64(firstLen), consumed.Load())
	require.Equal(t, 8+second.Len(), s.Buffered())
}

func TestPollCompleteSwallowsTimeoutError(t *testing.T) {
	conn := &timeoutConn{}
	consumed := atomic.NewUint64(0)
	s := New(conn, consumed)

	d := datum.NewLatencyProbe()
	require.NoError(t, s.StartSend(d))
	require.NoError(t, s.PollComplete())
}

type timeoutConn struct {
	net.Conn
}

func (c *timeoutConn) Write(b []byte) (int, error) {
	return 0, timeoutErr{}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
