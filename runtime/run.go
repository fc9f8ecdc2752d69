package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunFunc is one endpoint's program, as run by RunAll: given its context
// (canceled if any sibling fails), drive the endpoint to completion.
type RunFunc func(ctx context.Context) error

// RunAll fans out one goroutine per endpoint with errgroup.WithContext,
// the same fan-out idiom the pack's own store tests use for concurrent
// checks. It waits for every fn to return, canceling the shared context on
// the first error; BaseHandler primitives started after that fail Canceled.
// A call already blocked in a channel Recv is not interrupted by the
// cancellation; it returns once the channel delivers a frame or is closed
// (for example by the failed endpoint's CloseAllChannels). This is the harness
// cmd/choreorun (and the integration tests) use to run every role of a
// choreography concurrently over transport.Memory.
func RunAll(ctx context.Context, fns ...RunFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
