package project

import (
	"github.com/coatyio/choreo/ast"
)

// conflicts implements the Parallel conflict rules of spec §4.3: two
// projections conflict if they both begin with a Send to, or Receive from,
// the same peer, or if they both contain (at any point along their
// unconditionally-executed spine) a Select to, or Branch from, the same
// peer. "Top level" is interpreted here as the spine reachable by
// following Send/Receive continuations and Select/Branch/LocalChoice
// sub-branches, but not descending into Loop bodies or past a Var/Rec
// boundary: a loop's internal choices are not observable before the
// parallel composition as a whole has progressed past the loop, and the
// spec leaves loop-interior visibility unspecified, so this implementation
// does not assume it.
func conflicts(a, b *ast.LocalType) bool {
	if headConflict(a, b) {
		return true
	}
	aSel, aBr := spineTargets(a)
	bSel, bBr := spineTargets(b)
	for t := range aSel {
		if bSel[t] {
			return true
		}
	}
	for t := range aBr {
		if bBr[t] {
			return true
		}
	}
	return false
}

func headConflict(a, b *ast.LocalType) bool {
	if a.Kind == ast.LSend && b.Kind == ast.LSend {
		return a.Peer.Equal(b.Peer)
	}
	if a.Kind == ast.LReceive && b.Kind == ast.LReceive {
		return a.Peer.Equal(b.Peer)
	}
	return false
}

// spineTargets collects every Select-to and Branch-from peer name reachable
// along lt's unconditionally-executed spine (see conflicts' doc comment).
func spineTargets(lt *ast.LocalType) (selectTo, branchFrom map[string]bool) {
	selectTo = map[string]bool{}
	branchFrom = map[string]bool{}
	var visit func(*ast.LocalType)
	visit = func(n *ast.LocalType) {
		if n == nil {
			return
		}
		switch n.Kind {
		case ast.LSend, ast.LReceive:
			visit(n.Cont)
		case ast.LSelect:
			selectTo[n.Peer.Name] = true
			for _, br := range n.Branches {
				visit(br.Type)
			}
		case ast.LBranch:
			branchFrom[n.Peer.Name] = true
			for _, br := range n.Branches {
				visit(br.Type)
			}
		case ast.LLocalChoice:
			for _, br := range n.Branches {
				visit(br.Type)
			}
		default: // Loop, Rec, Var, End: spine stops here
		}
	}
	visit(lt)
	return selectTo, branchFrom
}

// spliceEnd returns a copy of lt with every reachable End leaf replaced by
// repl, without descending into Loop bodies or Rec/Var (those represent
// non-terminating or recursive control at this local site, to which a
// parallel sibling cannot be meaningfully appended — see conflicts' doc
// comment).
func spliceEnd(lt, repl *ast.LocalType) *ast.LocalType {
	switch lt.Kind {
	case ast.LEnd:
		return repl
	case ast.LSend:
		return ast.LSendNode(lt.Peer, lt.Message, spliceEnd(lt.Cont, repl))
	case ast.LReceive:
		return ast.LReceiveNode(lt.Peer, lt.Message, spliceEnd(lt.Cont, repl))
	case ast.LSelect:
		branches := make([]ast.LBranchCase, len(lt.Branches))
		for i, b := range lt.Branches {
			branches[i] = ast.LBranchCase{Label: b.Label, Type: spliceEnd(b.Type, repl)}
		}
		return ast.LSelectNode(lt.Peer, branches...)
	case ast.LBranch:
		branches := make([]ast.LBranchCase, len(lt.Branches))
		for i, b := range lt.Branches {
			branches[i] = ast.LBranchCase{Label: b.Label, Type: spliceEnd(b.Type, repl)}
		}
		return ast.LBranchNode(lt.Peer, branches...)
	case ast.LLocalChoice:
		branches := make([]ast.LBranchCase, len(lt.Branches))
		for i, b := range lt.Branches {
			branches[i] = ast.LBranchCase{Label: b.Label, Type: spliceEnd(b.Type, repl)}
		}
		return ast.LLocalChoiceNode(branches...)
	default: // Loop, Rec, Var: left untouched
		return lt
	}
}

// parallelMerge sequentializes a set of non-End projections in declaration
// order, rejecting any pair that conflicts (spec §4.3 "Parallel-merge").
func parallelMerge(projs []*ast.LocalType) (*ast.LocalType, error) {
	for i := 0; i < len(projs); i++ {
		for j := i + 1; j < len(projs); j++ {
			if conflicts(projs[i], projs[j]) {
				return nil, &ConflictError{Kind: "InconsistentParallel", Detail: "two parallel branches observably collide on the same peer"}
			}
		}
	}
	result := projs[len(projs)-1]
	for i := len(projs) - 2; i >= 0; i-- {
		result = spliceEnd(projs[i], result)
	}
	return result, nil
}

// ConflictError is returned by parallelMerge before being wrapped into an
// *errs.CompileError by Project, which has the role/position context.
type ConflictError struct {
	Kind   string
	Detail string
}

func (e *ConflictError) Error() string {
	return e.Kind + ": " + e.Detail
}
