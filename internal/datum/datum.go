// Package datum defines the wire datum (§3) and its length-prefixed codec
// (§4.1): an 8-byte big-endian length followed by a serialized tagged union.
package datum

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"

	"moto/internal/rterr"
)

// Kind discriminates the datum variants of §3.
type Kind uint8

const (
	// KindLive carries payload bytes for the selected degradation level; counted as goodput.
	KindLive Kind = iota
	// KindBwProbe carries zero-filled bytes at a controlled size; counted as throughput only.
	KindBwProbe
	// KindLatencyProbe carries an empty payload and a send timestamp; counted as neither.
	KindLatencyProbe
	// KindReceiverReport carries an encoded {latency, goodput, throughput}; control-plane only.
	KindReceiverReport
)

// Datum is a single application message on the wire. Every datum carries a
// UTC send timestamp (time.Now at construction, not rounded to milliseconds)
// and a cached serialized size used both for buffer sizing and for counter
// updates.
type Datum struct {
	Kind     Kind
	Level    int
	FrameNum uint64
	Payload  []byte
	SentAt   time.Time
	Report   Report

	size int // cached serialized size, excluded from equality by callers that care
}

// Report is the receiver-to-sender congestion report (§6).
type Report struct {
	LatencyMS      float64
	GoodputKbps    float64
	ThroughputKbps float64
}

// NewLive builds a Live datum of exactly n payload bytes at level, tagged
// with frameNum for ordering.
func NewLive(level int, frameNum uint64, n int) Datum {
	d := Datum{Kind: KindLive, Level: level, FrameNum: frameNum, Payload: make([]byte, n), SentAt: time.Now().UTC()}
	d.size = d.encodedSize()
	return d
}

// NewBwProbe builds a zero-filled bandwidth probe of exactly n bytes.
func NewBwProbe(n int) Datum {
	d := Datum{Kind: KindBwProbe, Payload: make([]byte, n), SentAt: time.Now().UTC()}
	d.size = d.encodedSize()
	return d
}

// NewLatencyProbe builds an empty-payload latency probe stamped with the current time.
func NewLatencyProbe() Datum {
	d := Datum{Kind: KindLatencyProbe, SentAt: time.Now().UTC()}
	d.size = d.encodedSize()
	return d
}

// NewReceiverReport builds a control-plane report datum.
func NewReceiverReport(r Report) Datum {
	d := Datum{Kind: KindReceiverReport, Report: r, SentAt: time.Now().UTC()}
	d.size = d.encodedSize()
	return d
}

// Len returns the cached serialized size, used both for buffer sizing and
// for produced/consumed byte-counter updates.
func (d Datum) Len() int {
	if d.size == 0 {
		d.size = d.encodedSize()
	}
	return d.size
}

// wireForm is the gob-serializable shape of Datum (unexported cache field excluded).
type wireForm struct {
	Kind     Kind
	Level    int
	FrameNum uint64
	Payload  []byte
	SentAt   time.Time
	Report   Report
}

func (d Datum) toWire() wireForm {
	return wireForm{Kind: d.Kind, Level: d.Level, FrameNum: d.FrameNum, Payload: d.Payload, SentAt: d.SentAt, Report: d.Report}
}

func (d Datum) encodedSize() int {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d.toWire()); err != nil {
		return 0
	}
	return buf.Len()
}

// Equal reports structural equality excluding the cached size, per the §8
// round-trip invariant (decode(encode(d)) == d).
func (d Datum) Equal(o Datum) bool {
	if d.Kind != o.Kind || d.Level != o.Level || d.FrameNum != o.FrameNum {
		return false
	}
	if !d.SentAt.Equal(o.SentAt) {
		return false
	}
	if d.Report != o.Report {
		return false
	}
	return bytes.Equal(d.Payload, o.Payload)
}

const lenPrefixSize = 8

// Encode writes the length-prefixed wire form of d into buf: an 8-byte
// big-endian length followed by the serialized datum. Reserves 8+len bytes
// up front (§4.1).
func Encode(d Datum, buf *bytes.Buffer) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(d.toWire()); err != nil {
		return rterr.Wrap(rterr.EncodeError, err, "encoding datum")
	}
	buf.Grow(lenPrefixSize + body.Len())
	var lenBuf [lenPrefixSize]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(body.Len()))
	buf.Write(lenBuf[:])
	buf.Write(body.Bytes())
	return nil
}

// decodeState is the small state machine of §4.1's decode side.
type decodeState int

const (
	stateAwaitLen decodeState = iota
	stateAwaitPayload
)

// Decoder incrementally decodes frames out of a growing byte buffer,
// preserving AwaitLen/AwaitPayload{len} state across calls that see a
// partial frame.
type Decoder struct {
	state   decodeState
	wantLen uint64
}

// NewDecoder returns a Decoder starting in AwaitLen.
func NewDecoder() *Decoder { return &Decoder{state: stateAwaitLen} }

// Decode consumes the next complete frame from buf, returning its datum and
// true, or (_, false, nil) if more bytes are needed. With fewer than 8 bytes
// buffered, buf is left untouched; once the length prefix is available it is
// consumed and the Decoder stays in AwaitPayload{len} until the payload has
// arrived. A non-nil error means the payload was malformed.
func (dec *Decoder) Decode(buf *bytes.Buffer) (Datum, bool, error) {
	for {
		switch dec.state {
		case stateAwaitLen:
			if buf.Len() < lenPrefixSize {
				return Datum{}, false, nil
			}
			lenBuf := buf.Next(lenPrefixSize)
			dec.wantLen = binary.BigEndian.Uint64(lenBuf)
			dec.state = stateAwaitPayload
		case stateAwaitPayload:
			if uint64(buf.Len()) < dec.wantLen {
				return Datum{}, false, nil
			}
			payload := buf.Next(int(dec.wantLen))
			dec.state = stateAwaitLen
			var w wireForm
			if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&w); err != nil {
				return Datum{}, false, rterr.Wrap(rterr.DecodeError, err, "decoding datum")
			}
			d := Datum{Kind: w.Kind, Level: w.Level, FrameNum: w.FrameNum, Payload: w.Payload, SentAt: w.SentAt, Report: w.Report}
			d.size = len(payload)
			return d, true, nil
		}
	}
}
