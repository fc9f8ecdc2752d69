// Package runtime implements the effect-handler runtime of spec.md §4.6:
// the ChoreoHandler contract, Endpoint/SessionMetadata lifecycle, a base
// handler over transport.Channel, an interpreter for effect.Program, and a
// multi-endpoint fan-out harness (RunAll).
//
// Grounded on the teacher's Coordinator/Worker Start/finalize lifecycle
// (compute/components/coordinator.go, worker.go): construct a
// semi-initialized value, bind its resources, then drive it through a
// single run to completion, signaling finalization on channels rather than
// leaving goroutines ownerless.
package runtime

import (
	"context"
	"time"

	"github.com/coatyio/choreo/ast"
)

// ChoreoHandler is the abstract protocol interpreter contract of spec.md
// §4.6: four suspension-point primitives plus the WithTimeout combinator.
// A middleware wraps a ChoreoHandler and satisfies the same contract
// (spec.md §4.6 "Middleware").
type ChoreoHandler interface {
	// Send serializes msg and delivers it on ep's channel to the peer to,
	// failing NoChannel if absent (spec.md §4.6).
	Send(ctx context.Context, ep *Endpoint, to ast.Role, msg ast.MessageType, payload any) error
	// Recv blocks on ep's channel to from, deserializing the next frame and
	// checking its tag against expect; a mismatch is ProtocolViolation.
	Recv(ctx context.Context, ep *Endpoint, from ast.Role, expect ast.MessageType) (payload any, err error)
	// Choose sends label as a control frame on ep's channel to who.
	Choose(ctx context.Context, ep *Endpoint, who ast.Role, label ast.Label) error
	// Offer blocks for a control frame on ep's channel to from, failing
	// ProtocolViolation if the first frame is not a label.
	Offer(ctx context.Context, ep *Endpoint, from ast.Role) (ast.Label, error)
	// WithTimeout schedules body with a deadline of dur; if it elapses
	// before body completes, body is canceled and Timeout is returned.
	// Cancellation is cooperative: body must check ctx at every suspension
	// point.
	WithTimeout(ctx context.Context, ep *Endpoint, peer ast.Role, dur time.Duration, body func(context.Context) error) error
}
