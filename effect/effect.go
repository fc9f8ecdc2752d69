// Package effect implements the effect program of spec.md §3/§4.5: a
// finite, lazy sequence of protocol actions (Send/Recv/Choose/Offer/
// WithTimeout/End) built once and interpreted at most once by the runtime
// package. It is the dynamic counterpart of a stub.Session: both views
// project the same LocalType and must agree on the observable operation
// sequence (spec.md §9).
//
// Grounded on the teacher's Computation interface (computation.go), which
// separates declaring a computation's stages (Partition/PartialCompute/
// Accumulate/Finalize) from running them: a Program here plays the same
// declare-then-run-once role for a local type's operation sequence.
package effect

import (
	"time"

	"github.com/coatyio/choreo/ast"
)

// Kind discriminates an effect Node's variant.
type Kind int

const (
	KindSend Kind = iota
	KindRecv
	KindChoose
	KindOffer
	KindWithTimeout
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindSend:
		return "Send"
	case KindRecv:
		return "Recv"
	case KindChoose:
		return "Choose"
	case KindOffer:
		return "Offer"
	case KindWithTimeout:
		return "WithTimeout"
	case KindEnd:
		return "End"
	default:
		return "Unknown"
	}
}

// Node is one effect in a Program. Exactly the fields relevant to Kind are
// populated.
type Node struct {
	Kind Kind

	// KindSend, KindRecv: Peer is the message's to/from role.
	Peer    ast.Role
	Message ast.MessageType
	Payload any // KindSend only; the value to serialize

	// KindChoose: Peer/Label. KindOffer: Peer only (label is learned at
	// runtime, not fixed by the program).
	Label ast.Label

	// KindWithTimeout
	Timeout time.Duration
	Body    *Program
}

// Equal reports whether two Nodes are structurally equal (spec.md §4.5:
// "Two nodes are equal iff structurally equal").
func (n Node) Equal(other Node) bool {
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case KindSend:
		return n.Peer.Equal(other.Peer) && n.Message.Equal(other.Message)
	case KindRecv:
		return n.Peer.Equal(other.Peer) && n.Message.Equal(other.Message)
	case KindChoose:
		return n.Peer.Equal(other.Peer) && n.Label == other.Label
	case KindOffer:
		return n.Peer.Equal(other.Peer)
	case KindWithTimeout:
		return n.Timeout == other.Timeout && n.Body.Equal(other.Body)
	case KindEnd:
		return true
	default:
		return false
	}
}

// Program is a finite, lazy sequence of effect Nodes. It is single-use: a
// Program consumed by the runtime's Interpret may not be interpreted
// again. Restart requires rebuilding a new Program from a Builder (spec.md
// §4.5).
type Program struct {
	nodes    []Node
	consumed bool
}

// Nodes returns the Program's node sequence without consuming it. Used by
// tests asserting the operation sequence matches a LocalType's shape.
func (p *Program) Nodes() []Node {
	if p == nil {
		return nil
	}
	return p.nodes
}

// Equal reports whether two Programs have structurally equal node
// sequences, ignoring consumed state.
func (p *Program) Equal(other *Program) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.nodes) != len(other.nodes) {
		return false
	}
	for i := range p.nodes {
		if !p.nodes[i].Equal(other.nodes[i]) {
			return false
		}
	}
	return true
}

// Consume marks the Program as interpreted, returning its node sequence.
// A second call returns ok=false: the runtime must treat this as
// ProtocolViolation (spec.md §4.5, §9 "Effect programs vs static stubs").
func (p *Program) Consume() (nodes []Node, ok bool) {
	if p.consumed {
		return nil, false
	}
	p.consumed = true
	return p.nodes, true
}

// Builder accumulates effect Nodes. Builders are single-use: Build may be
// called only once, after which the Builder is spent.
type Builder struct {
	nodes []Node
	built bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) push(n Node) *Builder {
	if b.built {
		panic("effect: builder already built")
	}
	b.nodes = append(b.nodes, n)
	return b
}

// Send appends a Send(to, msg) node.
func (b *Builder) Send(to ast.Role, msg ast.MessageType, payload any) *Builder {
	return b.push(Node{Kind: KindSend, Peer: to, Message: msg, Payload: payload})
}

// Recv appends a Recv(from, type-tag) node.
func (b *Builder) Recv(from ast.Role, msg ast.MessageType) *Builder {
	return b.push(Node{Kind: KindRecv, Peer: from, Message: msg})
}

// Choose appends a Choose(to, label) node.
func (b *Builder) Choose(to ast.Role, label ast.Label) *Builder {
	return b.push(Node{Kind: KindChoose, Peer: to, Label: label})
}

// Offer appends an Offer(from) node.
func (b *Builder) Offer(from ast.Role) *Builder {
	return b.push(Node{Kind: KindOffer, Peer: from})
}

// WithTimeout appends a WithTimeout(dur, sub-program) node. sub must come
// from its own Builder and is consumed structurally (not interpreted) when
// appended: it participates in Equal/Nodes but the runtime drives it via
// Body.Consume() when it reaches this node.
func (b *Builder) WithTimeout(dur time.Duration, sub *Program) *Builder {
	return b.push(Node{Kind: KindWithTimeout, Timeout: dur, Body: sub})
}

// End appends the terminal End node. Callers should treat End as the last
// call before Build; the Builder does not check that End comes last.
func (b *Builder) End() *Builder {
	return b.push(Node{Kind: KindEnd})
}

// Build finalizes the Builder into a Program. The Builder is spent: a
// second Build call panics, matching the "single-use" contract.
func (b *Builder) Build() *Program {
	if b.built {
		panic("effect: builder already built")
	}
	b.built = true
	return &Program{nodes: append([]Node(nil), b.nodes...)}
}
