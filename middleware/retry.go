package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/errs"
	"github.com/coatyio/choreo/runtime"
)

// Retry wraps a runtime.ChoreoHandler, re-invoking it on errs.Transport
// failures only — never on ProtocolViolation, Timeout, or Canceled (spec
// .md §8 property 6 "Retry safety") — up to MaxRetries times with
// exponential backoff base*2^k capped at MaxDelay. Built on
// backoff.ExponentialBackOff rather than a hand-rolled loop, replacing the
// teacher's bespoke pcResubmit queue (coordinator.go) with the pack's own
// backoff library for the same "retry a failed remote operation" shape.
type Retry struct {
	next       runtime.ChoreoHandler
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// NewRetry wraps next with retry behavior.
func NewRetry(next runtime.ChoreoHandler, maxRetries int, baseDelay, maxDelay time.Duration) *Retry {
	return &Retry{next: next, MaxRetries: maxRetries, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

func (r *Retry) backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.BaseDelay
	b.Multiplier = 2
	b.MaxInterval = r.MaxDelay
	b.RandomizationFactor = 0
	return backoff.WithMaxRetries(b, uint64(r.MaxRetries))
}

// retryable reports whether err is a Transport RuntimeError, the only
// kind Retry may re-invoke on.
func retryable(err error) bool {
	var re *errs.RuntimeError
	return errors.As(err, &re) && re.Retryable()
}

func (r *Retry) Send(ctx context.Context, ep *runtime.Endpoint, to ast.Role, msg ast.MessageType, payload any) error {
	var lastErr error
	b := backoff.WithContext(r.backoff(), ctx)
	_ = backoff.Retry(func() error {
		lastErr = r.next.Send(ctx, ep, to, msg, payload)
		if lastErr != nil && retryable(lastErr) {
			return lastErr
		}
		return nil
	}, b)
	return lastErr
}

func (r *Retry) Recv(ctx context.Context, ep *runtime.Endpoint, from ast.Role, expect ast.MessageType) (any, error) {
	var lastPayload any
	var lastErr error
	b := backoff.WithContext(r.backoff(), ctx)
	_ = backoff.Retry(func() error {
		lastPayload, lastErr = r.next.Recv(ctx, ep, from, expect)
		if lastErr != nil && retryable(lastErr) {
			return lastErr
		}
		return nil
	}, b)
	return lastPayload, lastErr
}

func (r *Retry) Choose(ctx context.Context, ep *runtime.Endpoint, who ast.Role, label ast.Label) error {
	var lastErr error
	b := backoff.WithContext(r.backoff(), ctx)
	_ = backoff.Retry(func() error {
		lastErr = r.next.Choose(ctx, ep, who, label)
		if lastErr != nil && retryable(lastErr) {
			return lastErr
		}
		return nil
	}, b)
	return lastErr
}

func (r *Retry) Offer(ctx context.Context, ep *runtime.Endpoint, from ast.Role) (ast.Label, error) {
	var lastLabel ast.Label
	var lastErr error
	b := backoff.WithContext(r.backoff(), ctx)
	_ = backoff.Retry(func() error {
		lastLabel, lastErr = r.next.Offer(ctx, ep, from)
		if lastErr != nil && retryable(lastErr) {
			return lastErr
		}
		return nil
	}, b)
	return lastLabel, lastErr
}

// WithTimeout is passed through unretried: retrying a timed-out body would
// mean re-running arbitrary caller logic, which is out of scope for a
// transport-level retry (and a poisoned channel from the inner timeout
// would just fail again immediately).
func (r *Retry) WithTimeout(ctx context.Context, ep *runtime.Endpoint, peer ast.Role, dur time.Duration, body func(context.Context) error) error {
	return r.next.WithTimeout(ctx, ep, peer, dur, body)
}
