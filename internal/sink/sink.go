// Package sink implements the Framed Sink of §4.2: a length-prefixed
// encoder over a TCP write half, with a bounded in-memory buffer and
// explicit backpressure.
package sink

import (
	"bytes"
	"errors"
	"io"
	"net"

	"go.uber.org/atomic"

	"moto/internal/datum"
	"moto/internal/rterr"
)

// InitialCapacity is the buffer capacity and backpressure threshold of §4.2.
const InitialCapacity = 32 * 1024

// ErrNotReady is returned by StartSend when the buffer is at or above the
// backpressure threshold even after a flush attempt; the caller must retry.
var ErrNotReady = errors.New("sink: not ready, buffer at backpressure threshold")

// Sink wraps a net.Conn write half with a bounded buffer. Every successful
// underlying write increments Consumed by the number of bytes accepted by
// the OS (§2, §4.2).
type Sink struct {
	conn      net.Conn
	buf       bytes.Buffer
	threshold int
	Consumed  *atomic.Uint64
}

// New wraps conn's write half. consumed is the shared counter the Monitor
// reads (§3 Ownership: the Sink exclusively owns the write half and buffer).
func New(conn net.Conn, consumed *atomic.Uint64) *Sink {
	return &Sink{conn: conn, threshold: InitialCapacity, Consumed: consumed}
}

// StartSend implements the policy of §4.2 step 1-2: if the buffer is at or
// above threshold, try a flush; if still at/above threshold, return
// ErrNotReady and the caller must retry (the datum is not consumed).
// Otherwise encode datum into the buffer.
func (s *Sink) StartSend(d datum.Datum) error {
	if s.buf.Len() >= s.threshold {
		if err := s.PollComplete(); err != nil {
			return err
		}
		if s.buf.Len() >= s.threshold {
			return ErrNotReady
		}
	}
	if err := datum.Encode(d, &s.buf); err != nil {
		return err
	}
	return nil
}

// PollComplete drains the buffer into the underlying stream (§4.2). A
// write of zero bytes while the buffer is non-empty is reported as a
// write-zero error. WouldBlock-style transient errors are swallowed (the
// caller simply retries later); any other I/O error is fatal.
func (s *Sink) PollComplete() error {
	for s.buf.Len() > 0 {
		n, err := s.conn.Write(s.buf.Bytes())
		if n > 0 {
			s.buf.Next(n)
			s.Consumed.Add(uint64(n))
		}
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return rterr.Wrap(rterr.Io, err, "sink write")
		}
		if n == 0 {
			return rterr.Wrap(rterr.Io, io.ErrShortWrite, "sink wrote zero bytes with non-empty buffer")
		}
	}
	if f, ok := s.conn.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil && !isWouldBlock(err) {
			return rterr.Wrap(rterr.Io, err, "sink flush")
		}
	}
	return nil
}

// Buffered returns the number of bytes currently held in the buffer,
// mostly for tests exercising the backpressure boundary.
func (s *Sink) Buffered() int { return s.buf.Len() }

func isWouldBlock(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
