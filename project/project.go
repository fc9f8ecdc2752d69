package project

import (
	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
)

// Project derives role r's LocalType from global protocol g, per the
// compositional rules of spec §4.3.
func Project(g *ast.Protocol, r ast.Role) (*ast.LocalType, error) {
	return projectNode(g, r)
}

func projectNode(p *ast.Protocol, r ast.Role) (*ast.LocalType, error) {
	if p == nil {
		return ast.LEndNode, nil
	}
	switch p.Kind {
	case ast.KindSend:
		cont, err := projectNode(p.Cont, r)
		if err != nil {
			return nil, err
		}
		switch {
		case r.Equal(p.From):
			return ast.LSendNode(p.To, p.Message, cont), nil
		case r.Equal(p.To):
			return ast.LReceiveNode(p.From, p.Message, cont), nil
		default:
			return cont, nil
		}

	case ast.KindChoice:
		return projectChoice(p, r)

	case ast.KindLoop:
		body, err := projectNode(p.Body, r)
		if err != nil {
			return nil, err
		}
		if body.Kind == ast.LEnd {
			return ast.LEndNode, nil
		}
		return ast.LLoopNode(p.Condition, body), nil

	case ast.KindParallel:
		return projectParallel(p, r)

	case ast.KindRec:
		body, err := projectNode(p.Body, r)
		if err != nil {
			return nil, err
		}
		if body.Kind == ast.LVar && body.Var == p.Var {
			return ast.LEndNode, nil // trivial recursion: elide (spec §4.3)
		}
		return ast.LRecNode(p.Var, body), nil

	case ast.KindVar:
		return ast.LVarNode(p.Var), nil

	case ast.KindEnd:
		return ast.LEndNode, nil

	default:
		return nil, errs.NewCompileError(errs.SyntaxError, errs.Pos{}, "unknown protocol node kind %v", p.Kind)
	}
}

func projectChoice(p *ast.Protocol, r ast.Role) (*ast.LocalType, error) {
	branchProjs := make([]*ast.LocalType, len(p.Branches))
	for i, b := range p.Branches {
		lt, err := projectNode(b.Protocol, r)
		if err != nil {
			return nil, err
		}
		branchProjs[i] = lt
	}

	lbranches := func() []ast.LBranchCase {
		out := make([]ast.LBranchCase, len(p.Branches))
		for i, b := range p.Branches {
			out[i] = ast.LBranchCase{Label: b.Label, Type: branchProjs[i]}
		}
		return out
	}

	if r.Equal(p.Decider) {
		allSendSameTarget := true
		var target ast.Role
		for i, lt := range branchProjs {
			if lt.Kind != ast.LSend {
				allSendSameTarget = false
				break
			}
			if i == 0 {
				target = lt.Peer
			} else if !lt.Peer.Equal(target) {
				allSendSameTarget = false
				break
			}
		}
		if allSendSameTarget {
			return ast.LSelectNode(target, lbranches()...), nil
		}
		return ast.LLocalChoiceNode(lbranches()...), nil
	}

	allReceiveFromDecider := true
	for _, lt := range branchProjs {
		if lt.Kind != ast.LReceive || !lt.Peer.Equal(p.Decider) {
			allReceiveFromDecider = false
			break
		}
	}
	if allReceiveFromDecider {
		return ast.LBranchNode(p.Decider, lbranches()...), nil
	}

	merged, err := mergeAll(branchProjs)
	if err != nil {
		return nil, errs.NewCompileError(errs.InconsistentChoice, errs.Pos{},
			"role %q cannot merge the branches of the choice decided by %q: %v", r.Name, p.Decider.Name, err)
	}
	return merged, nil
}

func projectParallel(p *ast.Protocol, r ast.Role) (*ast.LocalType, error) {
	var projs []*ast.LocalType
	for _, child := range p.Children {
		lt, err := projectNode(child, r)
		if err != nil {
			return nil, err
		}
		if lt.Kind != ast.LEnd {
			projs = append(projs, lt)
		}
	}
	switch len(projs) {
	case 0:
		return ast.LEndNode, nil
	case 1:
		return projs[0], nil
	default:
		merged, err := parallelMerge(projs)
		if err != nil {
			return nil, errs.NewCompileError(errs.InconsistentParallel, errs.Pos{},
				"role %q: %v", r.Name, err)
		}
		return merged, nil
	}
}

// ProjectAll projects every declared role of c, returning a map from role
// name to its LocalType. It stops at the first projection error.
func ProjectAll(c *ast.Choreography) (map[string]*ast.LocalType, error) {
	out := make(map[string]*ast.LocalType, len(c.Roles))
	for _, r := range c.Roles {
		lt, err := Project(c.Protocol, r)
		if err != nil {
			return nil, err
		}
		out[r.Name] = lt
	}
	return out, nil
}
