package stub

import (
	"context"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/runtime"
)

// Handle is the opaque session handle spec.md §4.4 describes: "the
// closure is given an opaque session handle whose available operations
// are exactly those dictated by the head of the local type." Every
// operation returns a fresh Handle over the continuation. The Handle an
// operation was called on is not marked as used: calling an operation on
// it again issues that operation again. Session.Run's consumed flag is the
// only single-shot check in this package.
type Handle struct {
	ctx context.Context
	ep  *runtime.Endpoint
	h   runtime.ChoreoHandler
	cur *ast.LocalType
	env map[string]*ast.LocalType // Rec variable bindings in lexical scope
}

func newHandle(ctx context.Context, ep *runtime.Endpoint, h runtime.ChoreoHandler, lt *ast.LocalType) *Handle {
	return &Handle{ctx: ctx, ep: ep, h: h, cur: lt, env: map[string]*ast.LocalType{}}
}

func (hd *Handle) advance(cur *ast.LocalType) *Handle {
	return &Handle{ctx: hd.ctx, ep: hd.ep, h: hd.h, cur: cur, env: hd.env}
}

// head resolves Rec/Var wrapper nodes transparently, binding each Rec's
// variable in env as it is unwound so the matching Var later resolves to
// the same body (spec.md §3 invariant 3: every Var is dominated by a Rec
// of the same name).
func (hd *Handle) head() *ast.LocalType {
	cur := hd.cur
	for {
		switch cur.Kind {
		case ast.LRec:
			hd.env[cur.Var] = cur.Body
			cur = cur.Body
		case ast.LVar:
			body, ok := hd.env[cur.Var]
			if !ok {
				return cur // dangling Var; Done() is false and the next op reports ProtocolViolation
			}
			cur = body
		default:
			return cur
		}
	}
}

// Done reports whether this Handle has reached End.
func (hd *Handle) Done() bool {
	return hd.head().Kind == ast.LEnd
}

// Kind reports the LKind of this Handle's head, for callers that drive a
// Handle generically across whichever operation the local type dictates
// next (e.g. cmd/choreorun's demo driver), rather than a stub emitted for
// one specific protocol shape.
func (hd *Handle) Kind() ast.LKind {
	return hd.head().Kind
}

// Peer reports the head's associated role, valid when Kind is Send,
// Receive, Select, or Branch.
func (hd *Handle) Peer() ast.Role {
	return hd.head().Peer
}

// BranchLabels reports the head's branch labels, valid when Kind is
// Select, Branch, or LocalChoice.
func (hd *Handle) BranchLabels() []ast.Label {
	return hd.head().BranchLabels()
}

func violation(op string, peer ast.Role, opCount int, format string, a ...any) error {
	return errs.NewRuntimeError(errs.ProtocolViolation, op, peer.Name, opCount, errs.NewCompileError(errs.SyntaxError, errs.Pos{}, format, a...))
}

// Send performs the head Send action, requiring the local type's head be
// Send. It returns the Handle for the continuation.
func (hd *Handle) Send(payload any) (*Handle, error) {
	head := hd.head()
	if head.Kind != ast.LSend {
		return nil, violation("send", ast.Role{}, 0, "stub: Send called but local type's head is %v, not Send", head.Kind)
	}
	if err := hd.h.Send(hd.ctx, hd.ep, head.Peer, head.Message, payload); err != nil {
		return nil, err
	}
	return hd.advance(head.Cont), nil
}

// Recv performs the head Receive action, requiring the local type's head
// be Receive. It returns the received payload and the Handle for the
// continuation.
func (hd *Handle) Recv() (any, *Handle, error) {
	head := hd.head()
	if head.Kind != ast.LReceive {
		return nil, nil, violation("recv", ast.Role{}, 0, "stub: Recv called but local type's head is %v, not Receive", head.Kind)
	}
	payload, err := hd.h.Recv(hd.ctx, hd.ep, head.Peer, head.Message)
	if err != nil {
		return nil, nil, err
	}
	return payload, hd.advance(head.Cont), nil
}

// Select performs the head Select action for label, requiring the local
// type's head be Select and label be one of its branches. It returns the
// Handle for the chosen branch's continuation.
func (hd *Handle) Select(label ast.Label) (*Handle, error) {
	head := hd.head()
	if head.Kind != ast.LSelect {
		return nil, violation("choose", ast.Role{}, 0, "stub: Select called but local type's head is %v, not Select", head.Kind)
	}
	cont := branchForSelect(head, label)
	if cont == nil {
		return nil, violation("choose", head.Peer, 0, "stub: label %q is not a branch of this Select", label)
	}
	if err := hd.h.Choose(hd.ctx, hd.ep, head.Peer, label); err != nil {
		return nil, err
	}
	return hd.advance(cont), nil
}

// LocalChoice performs the head LocalChoice action for label, requiring
// the local type's head be LocalChoice. No peer is notified (spec.md §3
// invariant 2: "in LocalChoice, no branch begins with a Send").
func (hd *Handle) LocalChoice(label ast.Label) (*Handle, error) {
	head := hd.head()
	if head.Kind != ast.LLocalChoice {
		return nil, violation("local_choice", ast.Role{}, 0, "stub: LocalChoice called but local type's head is %v, not LocalChoice", head.Kind)
	}
	cont := branchForSelect(head, label)
	if cont == nil {
		return nil, violation("local_choice", ast.Role{}, 0, "stub: label %q is not a branch of this LocalChoice", label)
	}
	return hd.advance(cont), nil
}

// Offer performs the head Branch action, requiring the local type's head
// be Branch. It returns the offered label and the Handle for that
// branch's continuation.
func (hd *Handle) Offer() (ast.Label, *Handle, error) {
	head := hd.head()
	if head.Kind != ast.LBranch {
		return "", nil, violation("offer", ast.Role{}, 0, "stub: Offer called but local type's head is %v, not Branch", head.Kind)
	}
	label, err := hd.h.Offer(hd.ctx, hd.ep, head.Peer)
	if err != nil {
		return "", nil, err
	}
	cont := branchForSelect(head, label)
	if cont == nil {
		return "", nil, violation("offer", head.Peer, 0, "stub: offered label %q is not a branch of this Branch", label)
	}
	return label, hd.advance(cont), nil
}

// branchForSelect looks up a Select/Branch/LocalChoice node's continuation
// by label.
func branchForSelect(lt *ast.LocalType, label ast.Label) *ast.LocalType {
	for _, b := range lt.Branches {
		if b.Label == label {
			return b.Type
		}
	}
	return nil
}

// LoopHandle drives the repeated execution of a Loop node's body.
type LoopHandle struct {
	owner *Handle
	cond  ast.Condition
	body  *ast.LocalType
	iter  int
}

// EnterLoop returns a LoopHandle if the local type's head is Loop.
func (hd *Handle) EnterLoop() (*LoopHandle, bool) {
	head := hd.head()
	if head.Kind != ast.LLoop {
		return nil, false
	}
	return &LoopHandle{owner: hd, cond: head.Condition, body: head.Body}, true
}

// ShouldContinue decides whether another iteration should run, for
// conditions this package can evaluate without caller input: CondCount
// (iterate Count times) and CondNone (the body itself must reach End via
// an internal choice to stop, so this always reports true; the caller
// breaks out by recognizing the body chose to end outside the loop).
//
// CondRoleDecides and CondCustom are decided by a role inside the loop
// body via Select/Branch (the DSL's own choice coherence rules apply), so
// ShouldContinue for those always returns true; the driving code observes
// the body's own chosen branch and stops calling Advance once that branch
// signals termination.
func (lh *LoopHandle) ShouldContinue() bool {
	switch lh.cond.Kind {
	case ast.CondCount:
		return lh.iter < lh.cond.Count
	default:
		return true
	}
}

// Body returns a fresh Handle rooted at this iteration's loop body.
func (lh *LoopHandle) Body() *Handle {
	return lh.owner.advance(lh.body)
}

// Advance records that one iteration has completed.
func (lh *LoopHandle) Advance() {
	lh.iter++
}
