package runtime

import (
	"context"
	"fmt"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/effect"
	"github.com/coatyio/choreo/errs"
)

// Interpret consumes prog's node sequence against handler h on ep, in
// order, suspending at each primitive exactly as spec.md §4.6 describes.
// A second Interpret call on the same Program fails ProtocolViolation
// (effect programs are single-shot; spec.md §4.5). On the first error the
// interpreter stops, leaving is_complete false for whichever peer's
// metadata was mid-flight; reaching an End node sets is_complete true for
// every peer this program addressed.
func Interpret(ctx context.Context, h ChoreoHandler, ep *Endpoint, prog *effect.Program) error {
	nodes, ok := prog.Consume()
	if !ok {
		return errs.NewRuntimeError(errs.ProtocolViolation, "interpret", "", 0, fmt.Errorf("effect program already consumed"))
	}

	touched := map[string]bool{}
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return errs.NewRuntimeError(errs.Canceled, "interpret", n.Peer.Name, 0, err)
		}
		switch n.Kind {
		case effect.KindSend:
			if err := h.Send(ctx, ep, n.Peer, n.Message, n.Payload); err != nil {
				return err
			}
			touched[n.Peer.Name] = true
		case effect.KindRecv:
			if _, err := h.Recv(ctx, ep, n.Peer, n.Message); err != nil {
				return err
			}
			touched[n.Peer.Name] = true
		case effect.KindChoose:
			if err := h.Choose(ctx, ep, n.Peer, n.Label); err != nil {
				return err
			}
			touched[n.Peer.Name] = true
		case effect.KindOffer:
			if _, err := h.Offer(ctx, ep, n.Peer); err != nil {
				return err
			}
			touched[n.Peer.Name] = true
		case effect.KindWithTimeout:
			if err := h.WithTimeout(ctx, ep, n.Peer, n.Timeout, func(bctx context.Context) error {
				return Interpret(bctx, h, ep, n.Body)
			}); err != nil {
				return err
			}
			touched[n.Peer.Name] = true
		case effect.KindEnd:
			for peer := range touched {
				// Endpoint.Metadata looks up by Role.Name alone, so a Role carrying
				// only the name (no declaration Index) resolves to the same entry.
				ep.Metadata(ast.Role{Name: peer}).markComplete()
			}
			return nil
		default:
			return errs.NewRuntimeError(errs.ProtocolViolation, "interpret", "", 0, fmt.Errorf("unknown effect node kind %v", n.Kind))
		}
	}
	return nil
}
