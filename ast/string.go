package ast

import "strings"

// String renders a LocalType as a compact, single-line debugging form, e.g.
// "Send(Bob,Ping); Receive(Bob,Pong); End". Intended for diagnostics
// (cmd/choreoc) and test assertions, not for round-tripping.
func (l *LocalType) String() string {
	if l == nil {
		return "End"
	}
	switch l.Kind {
	case LSend:
		return "Send(" + l.Peer.Name + "," + l.Message.Name + "); " + l.Cont.String()
	case LReceive:
		return "Receive(" + l.Peer.Name + "," + l.Message.Name + "); " + l.Cont.String()
	case LSelect:
		return "Select(" + l.Peer.Name + "){" + branchesString(l.Branches) + "}"
	case LBranch:
		return "Branch(" + l.Peer.Name + "){" + branchesString(l.Branches) + "}"
	case LLocalChoice:
		return "LocalChoice{" + branchesString(l.Branches) + "}"
	case LLoop:
		return "Loop(" + l.Condition.String() + "){" + l.Body.String() + "}"
	case LRec:
		return "Rec " + l.Var + "{" + l.Body.String() + "}"
	case LVar:
		return "Var(" + l.Var + ")"
	case LEnd:
		return "End"
	default:
		return "?"
	}
}

func branchesString(branches []LBranchCase) string {
	parts := make([]string, len(branches))
	for i, b := range branches {
		parts[i] = string(b.Label) + ":" + b.Type.String()
	}
	return strings.Join(parts, ", ")
}

// String renders a global Protocol in the same compact debugging form.
func (p *Protocol) String() string {
	if p == nil {
		return "End"
	}
	switch p.Kind {
	case KindSend:
		return p.From.Name + "->" + p.To.Name + ":" + p.Message.Name + "; " + p.Cont.String()
	case KindChoice:
		parts := make([]string, len(p.Branches))
		for i, b := range p.Branches {
			parts[i] = string(b.Label) + ":" + b.Protocol.String()
		}
		return "choice(" + p.Decider.Name + "){" + strings.Join(parts, ", ") + "}"
	case KindLoop:
		return "loop(" + p.Condition.String() + "){" + p.Body.String() + "}"
	case KindParallel:
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = c.String()
		}
		return "par{" + strings.Join(parts, " and ") + "}"
	case KindRec:
		return "rec " + p.Var + "{" + p.Body.String() + "}"
	case KindVar:
		return "Var(" + p.Var + ")"
	case KindEnd:
		return "End"
	default:
		return "?"
	}
}
