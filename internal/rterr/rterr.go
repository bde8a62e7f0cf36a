// Package rterr defines the error taxonomy shared by the client and server
// cores: a small set of kinds (not types) that callers classify on with
// errors.Is, wrapped with github.com/pkg/errors for stack context at the
// point an error is first observed.
package rterr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one entry in the error taxonomy of the adaptation runtime.
type Kind int

const (
	// SourceData covers failures resolving the next datum from the source adapter.
	SourceData Kind = iota
	// RemotePeer covers failures decoding or handling a remote report.
	RemotePeer
	// ControlPlane covers unhandled (state, signal) pairs and other adaptation-machine bugs.
	ControlPlane
	// DataPlane covers channel send/receive failures on the hot path.
	DataPlane
	// EncodeError covers datum serialization failures.
	EncodeError
	// DecodeError covers datum deserialization failures.
	DecodeError
	// Io covers plain I/O failures from the underlying stream.
	Io
	// TimerError covers failures from a cancellable interval.
	TimerError
	// SyncPoison covers a shared counter or cache observed in an inconsistent state.
	SyncPoison
)

func (k Kind) String() string {
	switch k {
	case SourceData:
		return "source_data"
	case RemotePeer:
		return "remote_peer"
	case ControlPlane:
		return "control_plane"
	case DataPlane:
		return "data_plane"
	case EncodeError:
		return "encode_error"
	case DecodeError:
		return "decode_error"
	case Io:
		return "io"
	case TimerError:
		return "timer_error"
	case SyncPoison:
		return "sync_poison"
	default:
		return "unknown"
	}
}

// kindError pairs a Kind with the underlying cause so errors.Is(err, SomeKindSentinel)
// and errors.As work across package boundaries without exposing a concrete type.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *kindError) Unwrap() error { return e.cause }

// sentinel exists only so errors.Is can match on kind via Is(target error) bool.
func (e *kindError) Is(target error) bool {
	var k *kindError
	if errors.As(target, &k) {
		return k.kind == e.kind && k.cause == nil
	}
	return false
}

// Sentinel returns a comparable value that errors.Is(err, Sentinel(k)) can match against.
func Sentinel(k Kind) error {
	return &kindError{kind: k}
}

// Wrap annotates err with kind, attaching a stack trace via pkg/errors at the
// call site. Returns nil if err is nil.
func Wrap(k Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, cause: pkgerrors.Wrap(err, msg)}
}

// New creates a fresh error of kind k with a message, stack-annotated.
func New(k Kind, msg string) error {
	return &kindError{kind: k, cause: pkgerrors.New(msg)}
}

// KindOf extracts the Kind carried by err, if any was attached via Wrap/New.
func KindOf(err error) (Kind, bool) {
	var k *kindError
	if errors.As(err, &k) {
		return k.kind, true
	}
	return 0, false
}

var (
	// ErrSourceData is the sentinel for errors.Is(err, ErrSourceData).
	ErrSourceData = Sentinel(SourceData)
	// ErrRemotePeer is the sentinel for errors.Is(err, ErrRemotePeer).
	ErrRemotePeer = Sentinel(RemotePeer)
	// ErrControlPlane is the sentinel for errors.Is(err, ErrControlPlane).
	ErrControlPlane = Sentinel(ControlPlane)
	// ErrDataPlane is the sentinel for errors.Is(err, ErrDataPlane).
	ErrDataPlane = Sentinel(DataPlane)
	// ErrEncode is the sentinel for errors.Is(err, ErrEncode).
	ErrEncode = Sentinel(EncodeError)
	// ErrDecode is the sentinel for errors.Is(err, ErrDecode).
	ErrDecode = Sentinel(DecodeError)
	// ErrIo is the sentinel for errors.Is(err, ErrIo).
	ErrIo = Sentinel(Io)
	// ErrTimer is the sentinel for errors.Is(err, ErrTimer).
	ErrTimer = Sentinel(TimerError)
	// ErrSyncPoison is the sentinel for errors.Is(err, ErrSyncPoison).
	ErrSyncPoison = Sentinel(SyncPoison)
)
