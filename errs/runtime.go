package errs

import "fmt"

// RuntimeKind discriminates the error taxonomy a ChoreoHandler primitive can
// fail with.
type RuntimeKind int

const (
	// NoChannel: the endpoint has no channel open to the named peer. Fatal
	// to the session.
	NoChannel RuntimeKind = iota
	// Transport: the underlying Channel failed. Retryable by middleware.
	Transport
	// ProtocolViolation: the session observed a message or control frame
	// that does not match the local type. Fatal, never retried.
	ProtocolViolation
	// Timeout: with_timeout's deadline elapsed before body completed.
	// Surfaced to the caller, not retried.
	Timeout
	// Canceled: propagated cancellation, from timeout or caller dropping
	// the effect program.
	Canceled
	// Closed: the channel was closed. Normal termination if expected by
	// the local type, fatal otherwise.
	Closed
)

func (k RuntimeKind) String() string {
	switch k {
	case NoChannel:
		return "NoChannel"
	case Transport:
		return "Transport"
	case ProtocolViolation:
		return "ProtocolViolation"
	case Timeout:
		return "Timeout"
	case Canceled:
		return "Canceled"
	case Closed:
		return "Closed"
	default:
		return "UnknownRuntimeError"
	}
}

// RuntimeError carries peer/op/operation_count context alongside the
// failing RuntimeKind, per §7's user-visible behavior requirement.
type RuntimeError struct {
	Kind           RuntimeKind
	Peer           string
	Op             string
	OperationCount int
	Cause          error
}

func (e *RuntimeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: op=%s peer=%s operation_count=%d: %v", e.Kind, e.Op, e.Peer, e.OperationCount, e.Cause)
	}
	return fmt.Sprintf("%s: op=%s peer=%s operation_count=%d", e.Kind, e.Op, e.Peer, e.OperationCount)
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RuntimeError of the same Kind.
func (e *RuntimeError) Is(target error) bool {
	other, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewRuntimeError constructs a RuntimeError.
func NewRuntimeError(kind RuntimeKind, op, peer string, opCount int, cause error) *RuntimeError {
	return &RuntimeError{Kind: kind, Op: op, Peer: peer, OperationCount: opCount, Cause: cause}
}

// Retryable reports whether Retry middleware is permitted to re-invoke the
// base handler for this error (spec §4.6: only on Err(Transport)).
func (e *RuntimeError) Retryable() bool {
	return e.Kind == Transport
}
