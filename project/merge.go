// Package project implements the projection algorithm of spec.md §4.3: the
// compositional derivation of a per-role LocalType from a global Protocol,
// the merge operator ⊔ for branches a non-deciding role cannot
// distinguish, and the parallel-merge operator with conflict detection.
//
// This is the hard part of the system (spec.md §1): soundness depends on
// correct tie-breaks in Choice projection and correct conflict rules in
// Parallel projection. The control-flow shape — an explicit case analysis
// over node kinds with named, specific failure modes rather than a single
// generic error — is grounded on the teacher's own most intricate function,
// Coordinator.partitionAccumulate, which distinguishes several named
// outcomes (computational error, resubmission, queue overflow, fast
// failure) instead of collapsing them into one error path.
package project

import (
	"fmt"

	"github.com/coatyio/choreo/ast"
)

// merge implements ⊔ on local types (spec §4.3 "Merge operator").
func merge(a, b *ast.LocalType) (*ast.LocalType, error) {
	if a.Kind == ast.LEnd && b.Kind == ast.LEnd {
		return ast.LEndNode, nil
	}
	if a.Kind == ast.LSend && b.Kind == ast.LSend && a.Peer.Equal(b.Peer) && a.Message.Equal(b.Message) {
		cont, err := merge(a.Cont, b.Cont)
		if err != nil {
			return nil, fmt.Errorf("Send(%s,%s): %w", a.Peer, a.Message, err)
		}
		return ast.LSendNode(a.Peer, a.Message, cont), nil
	}
	if a.Kind == ast.LReceive && b.Kind == ast.LReceive && a.Peer.Equal(b.Peer) && a.Message.Equal(b.Message) {
		cont, err := merge(a.Cont, b.Cont)
		if err != nil {
			return nil, fmt.Errorf("Receive(%s,%s): %w", a.Peer, a.Message, err)
		}
		return ast.LReceiveNode(a.Peer, a.Message, cont), nil
	}
	if a.Kind == ast.LBranch && b.Kind == ast.LBranch && a.Peer.Equal(b.Peer) {
		return mergeBranch(a, b)
	}
	return nil, fmt.Errorf("cannot merge %s and %s", a.Kind, b.Kind)
}

// mergeBranch unions two Branch nodes from the same sender by label,
// merging continuations of shared labels (spec §4.3).
func mergeBranch(a, b *ast.LocalType) (*ast.LocalType, error) {
	order := make([]ast.Label, 0, len(a.Branches)+len(b.Branches))
	byLabel := map[ast.Label]*ast.LocalType{}
	for _, br := range a.Branches {
		byLabel[br.Label] = br.Type
		order = append(order, br.Label)
	}
	for _, br := range b.Branches {
		if existing, ok := byLabel[br.Label]; ok {
			m, err := merge(existing, br.Type)
			if err != nil {
				return nil, fmt.Errorf("branch %q: %w", br.Label, err)
			}
			byLabel[br.Label] = m
		} else {
			byLabel[br.Label] = br.Type
			order = append(order, br.Label)
		}
	}
	branches := make([]ast.LBranchCase, len(order))
	for i, l := range order {
		branches[i] = ast.LBranchCase{Label: l, Type: byLabel[l]}
	}
	return ast.LBranchNode(a.Peer, branches...), nil
}

// mergeAll left-folds merge over a non-empty slice of local types.
func mergeAll(projs []*ast.LocalType) (*ast.LocalType, error) {
	merged := projs[0]
	var err error
	for i := 1; i < len(projs); i++ {
		merged, err = merge(merged, projs[i])
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}
