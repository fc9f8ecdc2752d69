// Package stub implements the stub emitter of spec.md §4.4: a per-role
// static representation of a projected LocalType, consumed by the host
// language's static type checker in a language with linear types. Go has
// neither linear types nor macros that could generate one stub type per
// local-type shape, so this package takes the fallback spec.md §9
// prescribes: "enforce single-shot use at run time by a one-bit 'consumed'
// flag on the session handle; any reuse yields ProtocolViolation."
//
// Grounded on the teacher's NewWorker/Start two-phase lifecycle
// (components/worker.go): NewSession returns a semi-initialized value,
// live only once Run is called, and Run may fire at most once.
package stub

import (
	"context"
	"sync/atomic"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/runtime"
)

// Session is a single-shot handle over a projected LocalType, bound to one
// role's Endpoint. The emitter refuses to construct a Session when
// projection failed (lt == nil), per spec.md §4.4 "The emitter must
// refuse to emit when projection failed."
type Session struct {
	role ast.Role
	ep   *runtime.Endpoint
	lt   *ast.LocalType

	consumed atomic.Bool
}

// NewSession constructs a Session for role, bound to ep, exposing lt. It
// returns an error if lt is nil (projection failed upstream).
func NewSession(role ast.Role, ep *runtime.Endpoint, lt *ast.LocalType) (*Session, error) {
	if lt == nil {
		return nil, errs.NewCompileError(errs.SyntaxError, errs.Pos{}, "stub: cannot emit a session for role %q: projection failed", role.Name)
	}
	return &Session{role: role, ep: ep, lt: lt}, nil
}

// Run interprets fn exactly once against a fresh Handle rooted at the
// session's local type. A second call — whether concurrent or sequential
// — fails with ProtocolViolation instead of running fn, enforcing the
// single-shot contract at runtime.
func (s *Session) Run(ctx context.Context, h runtime.ChoreoHandler, fn func(*Handle) error) error {
	if !s.consumed.CompareAndSwap(false, true) {
		return errs.NewRuntimeError(errs.ProtocolViolation, "run", "", 0, errAlreadyConsumed)
	}
	return fn(newHandle(ctx, s.ep, h, s.lt))
}

// LocalType returns the local type this session was emitted from, for
// diagnostics.
func (s *Session) LocalType() *ast.LocalType {
	return s.lt
}

type sessionError string

func (e sessionError) Error() string { return string(e) }

const errAlreadyConsumed = sessionError("stub: session already consumed")
