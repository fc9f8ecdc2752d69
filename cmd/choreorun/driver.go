package main

import (
	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/stub"
)

// decider picks a label among the offered branch labels when a local type's
// head is Select or LocalChoice (Branch/Offer take whatever the peer sent
// and need no decision here).
type decider func(labels []ast.Label) ast.Label

// drive walks hd generically to End, performing whichever operation its
// head dictates next. This is the demo-only analogue of a stub generated
// for one specific protocol shape: real callers know their local type
// statically and call Send/Recv/Select/... directly, as stub.Handle's own
// doc comment describes.
func drive(hd *stub.Handle, decide decider) error {
	for {
		switch hd.Kind() {
		case ast.LEnd:
			return nil

		case ast.LSend:
			next, err := hd.Send(samplePayload(hd.Peer()))
			if err != nil {
				return err
			}
			hd = next

		case ast.LReceive:
			_, next, err := hd.Recv()
			if err != nil {
				return err
			}
			hd = next

		case ast.LSelect:
			label := decide(hd.BranchLabels())
			next, err := hd.Select(label)
			if err != nil {
				return err
			}
			hd = next

		case ast.LBranch:
			_, next, err := hd.Offer()
			if err != nil {
				return err
			}
			hd = next

		case ast.LLocalChoice:
			label := decide(hd.BranchLabels())
			next, err := hd.LocalChoice(label)
			if err != nil {
				return err
			}
			hd = next

		case ast.LLoop:
			lh, _ := hd.EnterLoop()
			for lh.ShouldContinue() {
				if err := drive(lh.Body(), decide); err != nil {
					return err
				}
				lh.Advance()
			}
			return nil

		default:
			return nil
		}
	}
}

// samplePayload manufactures a placeholder payload for a Send whose message
// carries no caller-supplied business value in this demo driver.
func samplePayload(peer ast.Role) any {
	return map[string]any{"to": peer.Name}
}

// defaultDecider favors ending a choice over continuing it, so adder-choice
// (the only bundled example with a Select/LocalChoice node) terminates
// after one Add round instead of looping forever.
func defaultDecider() decider {
	adds := 1
	return func(labels []ast.Label) ast.Label {
		for _, l := range labels {
			if l == "Bye" && adds <= 0 {
				return l
			}
		}
		for _, l := range labels {
			if l == "Add" && adds > 0 {
				adds--
				return l
			}
		}
		for _, l := range labels {
			if l == "Bye" {
				return l
			}
		}
		return labels[0]
	}
}
