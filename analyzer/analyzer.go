// Package analyzer implements the well-formedness checks of spec.md §4.2:
// role coverage, loop progress, and choice coherence, run in order with
// short-circuiting on the first failure — the same fail-fast sequencing
// the teacher's Coordinator.Start uses for its own initialization steps.
package analyzer

import (
	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
)

// Analyze runs the ordered well-formedness checks against a parsed
// Choreography. It returns the first *errs.CompileError encountered, or
// nil if the choreography is well-formed.
func Analyze(c *ast.Choreography) error {
	if err := checkRoleCoverage(c); err != nil {
		return err
	}
	if err := checkProgress(c.Protocol); err != nil {
		return err
	}
	if err := checkChoiceCoherence(c.Protocol); err != nil {
		return err
	}
	return nil
}

// checkRoleCoverage verifies every declared role appears as sender or
// receiver in some reachable Send (spec §4.2.1). This implementation does
// not support the "observer" header flag (no surface syntax declares it),
// so every declared role must participate.
func checkRoleCoverage(c *ast.Choreography) error {
	seen := map[string]bool{}
	walk(c.Protocol, func(p *ast.Protocol) {
		if p.Kind == ast.KindSend {
			seen[p.From.Name] = true
			seen[p.To.Name] = true
		}
	})
	for _, r := range c.Roles {
		if !seen[r.Name] {
			return errs.NewCompileError(errs.UnknownRole, errs.Pos{}, "role %q is declared but never sends or receives a message", r.Name)
		}
	}
	return nil
}

// checkProgress verifies every Loop body contains at least one Send (spec
// §4.2.2).
func checkProgress(p *ast.Protocol) error {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case ast.KindSend:
		return checkProgress(p.Cont)
	case ast.KindLoop:
		if !containsSend(p.Body) {
			return errs.NewCompileError(errs.NonProductiveLoop, errs.Pos{}, "loop body contains no Send and can never make progress")
		}
		return checkProgress(p.Body)
	case ast.KindChoice:
		for _, b := range p.Branches {
			if err := checkProgress(b.Protocol); err != nil {
				return err
			}
		}
		return nil
	case ast.KindParallel:
		for _, child := range p.Children {
			if err := checkProgress(child); err != nil {
				return err
			}
		}
		return nil
	case ast.KindRec:
		return checkProgress(p.Body)
	case ast.KindVar, ast.KindEnd:
		return nil
	default:
		return nil
	}
}

func containsSend(p *ast.Protocol) bool {
	found := false
	walk(p, func(n *ast.Protocol) {
		if n.Kind == ast.KindSend {
			found = true
		}
	})
	return found
}

// checkChoiceCoherence verifies that for every Choice, each non-decider
// role r either does not appear in any branch, or its projection at r
// begins with a Receive from the decider with equal label sets across
// branches (spec §4.2.3). This is evaluated structurally here (without a
// full projection pass) by checking, for each non-decider role that appears
// in any branch, that its first observable action in every branch is a
// Receive from the decider and that it appears in every branch.
func checkChoiceCoherence(p *ast.Protocol) error {
	if p == nil {
		return nil
	}
	switch p.Kind {
	case ast.KindSend:
		return checkChoiceCoherence(p.Cont)
	case ast.KindLoop:
		return checkChoiceCoherence(p.Body)
	case ast.KindRec:
		return checkChoiceCoherence(p.Body)
	case ast.KindParallel:
		for _, child := range p.Children {
			if err := checkChoiceCoherence(child); err != nil {
				return err
			}
		}
		return nil
	case ast.KindChoice:
		if err := checkOneChoice(p); err != nil {
			return err
		}
		for _, b := range p.Branches {
			if err := checkChoiceCoherence(b.Protocol); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func checkOneChoice(choice *ast.Protocol) error {
	roles := map[string]bool{}
	for _, b := range choice.Branches {
		walk(b.Protocol, func(n *ast.Protocol) {
			if n.Kind == ast.KindSend {
				roles[n.From.Name] = true
				roles[n.To.Name] = true
			}
		})
	}
	delete(roles, choice.Decider.Name)

	for roleName := range roles {
		var firstFrom string
		labels := map[ast.Label]bool{}
		for _, b := range choice.Branches {
			from, ok := firstActionFrom(b.Protocol, roleName)
			if !ok {
				continue // role absent from this branch entirely is allowed
			}
			if from == "" {
				return errs.NewCompileError(errs.UncoordinatedChoice, errs.Pos{},
					"role %q's first action in branch %q of choice by %q is not a Receive from the decider", roleName, b.Label, choice.Decider.Name)
			}
			if firstFrom == "" {
				firstFrom = from
			} else if firstFrom != from {
				return errs.NewCompileError(errs.UncoordinatedChoice, errs.Pos{},
					"role %q is notified of choice by %q from inconsistent senders across branches", roleName, choice.Decider.Name)
			}
			labels[b.Label] = true
		}
		if len(labels) == 0 {
			continue
		}
		if firstFrom != choice.Decider.Name {
			return errs.NewCompileError(errs.UncoordinatedChoice, errs.Pos{},
				"role %q must be notified directly by the deciding role %q before any ambiguity", roleName, choice.Decider.Name)
		}
		// spec §4.2.3: the label set at which roleName participates must
		// equal the choice's full label set, not merely match it in count.
		for _, b := range choice.Branches {
			if !labels[b.Label] {
				return errs.NewCompileError(errs.UncoordinatedChoice, errs.Pos{},
					"role %q does not appear in branch %q of the choice decided by %q", roleName, b.Label, choice.Decider.Name)
			}
		}
	}
	return nil
}

// firstActionFrom finds the first Send in p (following only the single
// reachable path from the root, not descending into nested choices/pars
// beyond their own decider) in which role participates, reporting the
// sender's name if it is the receiver, or "" if it is itself the sender
// (not notified, i.e. uncoordinated).
func firstActionFrom(p *ast.Protocol, role string) (from string, ok bool) {
	for p != nil {
		switch p.Kind {
		case ast.KindSend:
			if p.To.Name == role {
				return p.From.Name, true
			}
			if p.From.Name == role {
				return "", true
			}
			p = p.Cont
		case ast.KindRec:
			p = p.Body
		case ast.KindLoop:
			p = p.Body
		default:
			return "", false
		}
	}
	return "", false
}

// walk visits every Protocol node reachable from p exactly once along
// structural edges (Cont, Branches, Body, Children), calling visit on
// each. Var nodes do not re-enter their binding Rec (no infinite walk).
func walk(p *ast.Protocol, visit func(*ast.Protocol)) {
	if p == nil {
		return
	}
	visit(p)
	switch p.Kind {
	case ast.KindSend:
		walk(p.Cont, visit)
	case ast.KindChoice:
		for _, b := range p.Branches {
			walk(b.Protocol, visit)
		}
	case ast.KindLoop, ast.KindRec:
		walk(p.Body, visit)
	case ast.KindParallel:
		for _, c := range p.Children {
			walk(c, visit)
		}
	}
}
