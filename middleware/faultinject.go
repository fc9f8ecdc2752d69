package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/runtime"
)

// Predicate decides whether FaultInject should count a given primitive
// call towards its k-th-match trigger.
type Predicate func(op, peer string) bool

// FaultInject is a test-only middleware that deterministically fails the
// k-th operation matching Predicate with a Transport error (so Retry, if
// present further out in the composition, is exercised realistically).
// The sole mutable state shared across calls is the atomic match counter,
// per spec.md §5 "Middlewares share no mutable state except... a sequence
// counter (FaultInject)".
type FaultInject struct {
	next  runtime.ChoreoHandler
	match Predicate
	k     int64 // 1-indexed match ordinal to fail
	seen  atomic.Int64
}

// NewFaultInject wraps next, failing the k-th call (1-indexed) for which
// match returns true.
func NewFaultInject(next runtime.ChoreoHandler, match Predicate, k int) *FaultInject {
	return &FaultInject{next: next, match: match, k: int64(k)}
}

func (f *FaultInject) trigger(op, peer string) bool {
	if !f.match(op, peer) {
		return false
	}
	return f.seen.Add(1) == f.k
}

func (f *FaultInject) Send(ctx context.Context, ep *runtime.Endpoint, to ast.Role, msg ast.MessageType, payload any) error {
	if f.trigger("send", to.Name) {
		return errs.NewRuntimeError(errs.Transport, "send", to.Name, ep.Metadata(to).OperationCount, errFaultInjected)
	}
	return f.next.Send(ctx, ep, to, msg, payload)
}

func (f *FaultInject) Recv(ctx context.Context, ep *runtime.Endpoint, from ast.Role, expect ast.MessageType) (any, error) {
	if f.trigger("recv", from.Name) {
		return nil, errs.NewRuntimeError(errs.Transport, "recv", from.Name, ep.Metadata(from).OperationCount, errFaultInjected)
	}
	return f.next.Recv(ctx, ep, from, expect)
}

func (f *FaultInject) Choose(ctx context.Context, ep *runtime.Endpoint, who ast.Role, label ast.Label) error {
	if f.trigger("choose", who.Name) {
		return errs.NewRuntimeError(errs.Transport, "choose", who.Name, ep.Metadata(who).OperationCount, errFaultInjected)
	}
	return f.next.Choose(ctx, ep, who, label)
}

func (f *FaultInject) Offer(ctx context.Context, ep *runtime.Endpoint, from ast.Role) (ast.Label, error) {
	if f.trigger("offer", from.Name) {
		return "", errs.NewRuntimeError(errs.Transport, "offer", from.Name, ep.Metadata(from).OperationCount, errFaultInjected)
	}
	return f.next.Offer(ctx, ep, from)
}

func (f *FaultInject) WithTimeout(ctx context.Context, ep *runtime.Endpoint, peer ast.Role, dur time.Duration, body func(context.Context) error) error {
	if f.trigger("with_timeout", peer.Name) {
		return errs.NewRuntimeError(errs.Transport, "with_timeout", peer.Name, ep.Metadata(peer).OperationCount, errFaultInjected)
	}
	return f.next.WithTimeout(ctx, ep, peer, dur, body)
}

var errFaultInjected = faultInjectedError{}

type faultInjectedError struct{}

func (faultInjectedError) Error() string { return "middleware: fault injected" }
