package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/transport"
)

// envelope is the payload shape Send/Recv exchange inside a transport.
// FrameData frame: the message's declared name (so Recv can detect a
// ProtocolViolation type mismatch per spec.md §4.6) alongside its
// JSON-encoded value. JSON, not gob, because payloads arrive as opaque
// `any` values from callers with no shared type registry to gob.Register
// against; the GRPC transport adapter uses gob only for its own envelope
// of already-JSON-or-raw bytes (see transport/grpc.go), which is a
// different layer.
type envelope struct {
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// BaseHandler is the ChoreoHandler implementation grounding the other four
// primitives directly in a transport.Channel, with no cross-cutting
// behavior. Middlewares (package middleware) wrap a BaseHandler (or one
// another) to add tracing, retry, metrics, and fault injection without
// changing this type.
type BaseHandler struct{}

// NewBaseHandler returns the base ChoreoHandler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

func (h *BaseHandler) Send(ctx context.Context, ep *Endpoint, to ast.Role, msg ast.MessageType, payload any) error {
	md := ep.Metadata(to)
	md.recordStart(fmt.Sprintf("sending %s", msg.Name))

	if err := ctx.Err(); err != nil {
		return errs.NewRuntimeError(errs.Canceled, "send", to.Name, md.OperationCount, err)
	}

	ch, ok := ep.Channel(to)
	if !ok {
		return errs.NewRuntimeError(errs.NoChannel, "send", to.Name, md.OperationCount, nil)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errs.NewRuntimeError(errs.ProtocolViolation, "send", to.Name, md.OperationCount, err)
	}
	data, err := json.Marshal(envelope{Tag: msg.Name, Payload: raw})
	if err != nil {
		return errs.NewRuntimeError(errs.ProtocolViolation, "send", to.Name, md.OperationCount, err)
	}

	if err := ch.Send(transport.FrameData, data); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return errs.NewRuntimeError(errs.Closed, "send", to.Name, md.OperationCount, err)
		}
		return errs.NewRuntimeError(errs.Transport, "send", to.Name, md.OperationCount, err)
	}

	md.recordSuccess(fmt.Sprintf("sent %s", msg.Name))
	ep.Printf("sent %s to %s", msg.Name, to.Name)
	return nil
}

func (h *BaseHandler) Recv(ctx context.Context, ep *Endpoint, from ast.Role, expect ast.MessageType) (any, error) {
	md := ep.Metadata(from)
	md.recordStart(fmt.Sprintf("receiving %s", expect.Name))

	if err := ctx.Err(); err != nil {
		return nil, errs.NewRuntimeError(errs.Canceled, "recv", from.Name, md.OperationCount, err)
	}

	ch, ok := ep.Channel(from)
	if !ok {
		return nil, errs.NewRuntimeError(errs.NoChannel, "recv", from.Name, md.OperationCount, nil)
	}

	kind, data, err := ch.Recv()
	if err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return nil, errs.NewRuntimeError(errs.Closed, "recv", from.Name, md.OperationCount, err)
		}
		return nil, errs.NewRuntimeError(errs.Transport, "recv", from.Name, md.OperationCount, err)
	}
	if kind != transport.FrameData {
		return nil, errs.NewRuntimeError(errs.ProtocolViolation, "recv", from.Name, md.OperationCount,
			fmt.Errorf("expected a data frame, got frame kind %#x", kind))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errs.NewRuntimeError(errs.ProtocolViolation, "recv", from.Name, md.OperationCount, err)
	}
	if env.Tag != expect.Name {
		return nil, errs.NewRuntimeError(errs.ProtocolViolation, "recv", from.Name, md.OperationCount,
			fmt.Errorf("expected message %q, got %q", expect.Name, env.Tag))
	}
	var payload any
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, errs.NewRuntimeError(errs.ProtocolViolation, "recv", from.Name, md.OperationCount, err)
		}
	}

	md.recordSuccess(fmt.Sprintf("received %s", expect.Name))
	ep.Printf("received %s from %s", expect.Name, from.Name)
	return payload, nil
}

func (h *BaseHandler) Choose(ctx context.Context, ep *Endpoint, who ast.Role, label ast.Label) error {
	md := ep.Metadata(who)
	md.recordStart(fmt.Sprintf("choosing %s", label))

	if err := ctx.Err(); err != nil {
		return errs.NewRuntimeError(errs.Canceled, "choose", who.Name, md.OperationCount, err)
	}

	ch, ok := ep.Channel(who)
	if !ok {
		return errs.NewRuntimeError(errs.NoChannel, "choose", who.Name, md.OperationCount, nil)
	}
	if err := ch.Send(transport.FrameLabel, []byte(label)); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return errs.NewRuntimeError(errs.Closed, "choose", who.Name, md.OperationCount, err)
		}
		return errs.NewRuntimeError(errs.Transport, "choose", who.Name, md.OperationCount, err)
	}

	md.recordSuccess(fmt.Sprintf("chose %s", label))
	ep.Printf("chose %s to %s", label, who.Name)
	return nil
}

func (h *BaseHandler) Offer(ctx context.Context, ep *Endpoint, from ast.Role) (ast.Label, error) {
	md := ep.Metadata(from)
	md.recordStart("offering")

	if err := ctx.Err(); err != nil {
		return "", errs.NewRuntimeError(errs.Canceled, "offer", from.Name, md.OperationCount, err)
	}

	ch, ok := ep.Channel(from)
	if !ok {
		return "", errs.NewRuntimeError(errs.NoChannel, "offer", from.Name, md.OperationCount, nil)
	}
	kind, data, err := ch.Recv()
	if err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return "", errs.NewRuntimeError(errs.Closed, "offer", from.Name, md.OperationCount, err)
		}
		return "", errs.NewRuntimeError(errs.Transport, "offer", from.Name, md.OperationCount, err)
	}
	if kind != transport.FrameLabel {
		return "", errs.NewRuntimeError(errs.ProtocolViolation, "offer", from.Name, md.OperationCount,
			fmt.Errorf("expected a label frame, got frame kind %#x", kind))
	}

	label := ast.Label(data)
	md.recordSuccess(fmt.Sprintf("offered %s", label))
	ep.Printf("offered %s from %s", label, from.Name)
	return label, nil
}

func (h *BaseHandler) WithTimeout(ctx context.Context, ep *Endpoint, peer ast.Role, dur time.Duration, body func(context.Context) error) error {
	md := ep.Metadata(peer)
	before := md.OperationCount

	cctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- body(cctx) }()

	select {
	case err := <-done:
		return err
	case <-cctx.Done():
		// Cancellation is cooperative: body must have observed cctx at its
		// own next suspension point and returned by now, or it may still be
		// blocked in a transport call that never completes. Either way the
		// channel is considered poisoned once a timeout fires (spec.md §5
		// "in-flight bytes on a channel are not rolled back... the channel
		// is considered poisoned and must be closed").
		if ch, ok := ep.Channel(peer); ok {
			ch.Close()
		}
		return errs.NewRuntimeError(errs.Timeout, "with_timeout", peer.Name, before, cctx.Err())
	}
}
