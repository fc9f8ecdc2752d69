// Package middleware implements the composable ChoreoHandler wrappers of
// spec.md §4.6: Trace, Retry, Metrics, and the test-only FaultInject.
// Composition is plain wrapping — Trace(Retry(Metrics(base))): there is no
// registry or dynamic list, just nested struct values each satisfying
// runtime.ChoreoHandler. Each layer holds its inner handler as a
// runtime.ChoreoHandler interface value, so every layer adds one interface
// call per operation.
//
// Trace is grounded on clog.CLogger's conditional Printf, generalized to
// the structured op/peer/outcome/elapsed event shape via CLogger.Eventf.
package middleware

import (
	"context"
	"time"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/clog"
	"github.com/coatyio/choreo/runtime"
)

// Trace wraps a runtime.ChoreoHandler, emitting one structured event on
// entry and one on exit of every primitive call: {op, peer, outcome,
// elapsed}.
type Trace struct {
	next runtime.ChoreoHandler
	log  *clog.CLogger
}

// NewTrace wraps next with tracing, logging through log.
func NewTrace(next runtime.ChoreoHandler, log *clog.CLogger) *Trace {
	return &Trace{next: next, log: log}
}

func (t *Trace) Send(ctx context.Context, ep *runtime.Endpoint, to ast.Role, msg ast.MessageType, payload any) error {
	t.log.Eventf("send", to.Name, "enter", "message", msg.Name)
	start := time.Now()
	err := t.next.Send(ctx, ep, to, msg, payload)
	t.log.Eventf("send", to.Name, outcomeOf(err), "elapsed", time.Since(start))
	return err
}

func (t *Trace) Recv(ctx context.Context, ep *runtime.Endpoint, from ast.Role, expect ast.MessageType) (any, error) {
	t.log.Eventf("recv", from.Name, "enter", "expect", expect.Name)
	start := time.Now()
	payload, err := t.next.Recv(ctx, ep, from, expect)
	t.log.Eventf("recv", from.Name, outcomeOf(err), "elapsed", time.Since(start))
	return payload, err
}

func (t *Trace) Choose(ctx context.Context, ep *runtime.Endpoint, who ast.Role, label ast.Label) error {
	t.log.Eventf("choose", who.Name, "enter", "label", label)
	start := time.Now()
	err := t.next.Choose(ctx, ep, who, label)
	t.log.Eventf("choose", who.Name, outcomeOf(err), "elapsed", time.Since(start))
	return err
}

func (t *Trace) Offer(ctx context.Context, ep *runtime.Endpoint, from ast.Role) (ast.Label, error) {
	t.log.Eventf("offer", from.Name, "enter")
	start := time.Now()
	label, err := t.next.Offer(ctx, ep, from)
	t.log.Eventf("offer", from.Name, outcomeOf(err), "elapsed", time.Since(start), "label", label)
	return label, err
}

func (t *Trace) WithTimeout(ctx context.Context, ep *runtime.Endpoint, peer ast.Role, dur time.Duration, body func(context.Context) error) error {
	t.log.Eventf("with_timeout", peer.Name, "enter", "dur", dur)
	start := time.Now()
	err := t.next.WithTimeout(ctx, ep, peer, dur, body)
	t.log.Eventf("with_timeout", peer.Name, outcomeOf(err), "elapsed", time.Since(start))
	return err
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return "err"
}
