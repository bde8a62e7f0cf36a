// Package framing hosts the shared read-half decode loop used by both the
// client's Remote Report Reader and the server's Framed Source (§2): pull
// bytes off a net.Conn, feed them through datum.Decoder, and publish
// complete datums on a channel.
package framing

import (
	"bytes"
	"context"
	"io"
	"net"

	"moto/internal/datum"
	"moto/internal/rterr"
)

const readChunk = 4096

// Reader pumps conn's read half into a decoded-datum channel until ctx is
// cancelled, the peer closes the connection, or a malformed payload is hit
// (in which case §7 "surfaced" applies: Err is set and Datums is closed).
type Reader struct {
	conn   net.Conn
	Datums chan datum.Datum
	Err    chan error
}

// NewReader starts the background pump goroutine immediately.
func NewReader(ctx context.Context, conn net.Conn) *Reader {
	r := &Reader{
		conn:   conn,
		Datums: make(chan datum.Datum, 32),
		Err:    make(chan error, 1),
	}
	go r.pump(ctx)
	return r
}

func (r *Reader) pump(ctx context.Context) {
	defer close(r.Datums)

	var buf bytes.Buffer
	dec := datum.NewDecoder()
	chunk := make([]byte, readChunk)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for {
			d, ok, err := dec.Decode(&buf)
			if err != nil {
				r.Err <- rterr.Wrap(rterr.DecodeError, err, "framing: decode")
				return
			}
			if !ok {
				break
			}
			select {
			case r.Datums <- d:
			case <-ctx.Done():
				return
			}
		}

		n, err := r.conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if err == io.EOF {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			r.Err <- rterr.Wrap(rterr.Io, err, "framing: read")
			return
		}
	}
}
