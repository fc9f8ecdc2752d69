package effect

import (
	"fmt"

	"github.com/coatyio/choreo/ast"
)

// FromLinearLocalType builds a Program mechanically from a LocalType whose
// shape is a straight-line sequence of Send/Receive nodes terminated by
// End — no Select, Branch, LocalChoice, Loop, Rec or Var. This covers the
// simplest of the testable scenarios in spec.md §8 (ping-pong) where the
// static stub and the effect program are two views of literally the same
// sequence and can be generated identically.
//
// Protocols with choice or recursion need branch/iteration decisions only
// the caller can supply, so they are built directly with Builder instead
// (see stub.Handle for the general, decision-driven walk of an arbitrary
// LocalType).
func FromLinearLocalType(lt *ast.LocalType, payloads map[string]any) (*Program, error) {
	b := NewBuilder()
	cur := lt
	for {
		switch cur.Kind {
		case ast.LSend:
			b.Send(cur.Peer, cur.Message, payloads[cur.Message.Name])
			cur = cur.Cont
		case ast.LReceive:
			b.Recv(cur.Peer, cur.Message)
			cur = cur.Cont
		case ast.LEnd:
			return b.End().Build(), nil
		default:
			return nil, fmt.Errorf("effect: FromLinearLocalType: unsupported node %v; use Builder/stub.Handle for choice or recursion", cur.Kind)
		}
	}
}
