// End-to-end tests driving every bundled example choreography to completion
// over transport.Memory, through the full stub/runtime/middleware stack,
// covering spec.md §8's scenarios 1-3 (ping-pong, adder-choice,
// parallel-distinct). Scenario 6 (timeout) is covered directly against
// runtime.BaseHandler in runtime/runtime_test.go, since with_timeout has no
// stub.Handle counterpart (it is a runtime primitive, not part of a local
// type's grammar).
package choreo_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coatyio/choreo/analyzer"
	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/clog"
	"github.com/coatyio/choreo/examples"
	"github.com/coatyio/choreo/middleware"
	"github.com/coatyio/choreo/project"
	"github.com/coatyio/choreo/runtime"
	"github.com/coatyio/choreo/stub"
	"github.com/coatyio/choreo/transport"
)

// wireEndpoints builds one Endpoint per role and binds a transport.Memory
// channel between every pair of roles.
func wireEndpoints(t *testing.T, c *ast.Choreography) map[string]*runtime.Endpoint {
	t.Helper()
	endpoints := make(map[string]*runtime.Endpoint, len(c.Roles))
	for _, r := range c.Roles {
		endpoints[r.Name] = runtime.NewEndpoint(r)
	}
	for i := 0; i < len(c.Roles); i++ {
		for j := i + 1; j < len(c.Roles); j++ {
			a, b := transport.NewMemoryPair()
			endpoints[c.Roles[i].Name].Bind(c.Roles[j], a)
			endpoints[c.Roles[j].Name].Bind(c.Roles[i], b)
		}
	}
	return endpoints
}

// stack composes the full middleware chain Trace(Retry(Metrics(Base))), one
// instance per role so each gets its own prometheus registry.
func stack(role ast.Role, log *clog.CLogger) runtime.ChoreoHandler {
	reg := prometheus.NewRegistry()
	base := runtime.NewBaseHandler()
	withMetrics := middleware.NewMetrics(base, reg, "choreo_it", role.Name)
	withRetry := middleware.NewRetry(withMetrics, 3, 0, 0)
	return middleware.NewTrace(withRetry, log)
}

func TestIntegrationPingPong(t *testing.T) {
	c := examples.NewRegistry().ByName("pingpong").Build()
	if err := analyzer.Analyze(c); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	locals, err := project.ProjectAll(c)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	endpoints := wireEndpoints(t, c)

	var fns []runtime.RunFunc
	for _, r := range c.Roles {
		role, ep, lt := r, endpoints[r.Name], locals[r.Name]
		fns = append(fns, func(ctx context.Context) error {
			defer ep.CloseAllChannels()
			sess, err := stub.NewSession(role, ep, lt)
			if err != nil {
				return err
			}
			h := stack(role, ep.CLogger)
			return sess.Run(ctx, h, func(hd *stub.Handle) error {
				var err error
				for !hd.Done() {
					switch hd.Kind() {
					case ast.LSend:
						hd, err = hd.Send("payload")
					case ast.LReceive:
						_, hd, err = hd.Recv()
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
	}

	if err := runtime.RunAll(context.Background(), fns...); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	for _, r := range c.Roles {
		ep := endpoints[r.Name]
		for _, peer := range ep.Peers() {
			md := ep.Metadata(ast.Role{Name: peer}).Snapshot()
			if !md.IsComplete {
				t.Fatalf("role %s's session with %s did not complete: %+v", r.Name, peer, &md)
			}
			if md.OperationCount == 0 {
				t.Fatalf("role %s's session with %s recorded no operations", r.Name, peer)
			}
		}
	}
}

func TestIntegrationAdderChoice(t *testing.T) {
	c := examples.NewRegistry().ByName("adder-choice").Build()
	if err := analyzer.Analyze(c); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	locals, err := project.ProjectAll(c)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	endpoints := wireEndpoints(t, c)

	var fns []runtime.RunFunc
	for _, r := range c.Roles {
		role, ep, lt := r, endpoints[r.Name], locals[r.Name]
		fns = append(fns, func(ctx context.Context) error {
			defer ep.CloseAllChannels()
			sess, err := stub.NewSession(role, ep, lt)
			if err != nil {
				return err
			}
			h := stack(role, ep.CLogger)
			rounds := 0
			return sess.Run(ctx, h, func(hd *stub.Handle) error {
				var err error
				for !hd.Done() {
					switch hd.Kind() {
					case ast.LSend:
						hd, err = hd.Send(1)
					case ast.LReceive:
						_, hd, err = hd.Recv()
					case ast.LSelect:
						if rounds < 1 {
							rounds++
							hd, err = hd.Select("Add")
						} else {
							hd, err = hd.Select("Bye")
						}
					case ast.LBranch:
						_, hd, err = hd.Offer()
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
	}

	if err := runtime.RunAll(context.Background(), fns...); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	for _, r := range c.Roles {
		ep := endpoints[r.Name]
		for _, peer := range ep.Peers() {
			md := ep.Metadata(ast.Role{Name: peer}).Snapshot()
			if !md.IsComplete {
				t.Fatalf("role %s's session with %s did not complete: %+v", r.Name, peer, &md)
			}
		}
	}
}

func TestIntegrationParallelDistinct(t *testing.T) {
	c := examples.NewRegistry().ByName("parallel-distinct").Build()
	if err := analyzer.Analyze(c); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	locals, err := project.ProjectAll(c)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	endpoints := wireEndpoints(t, c)

	var fns []runtime.RunFunc
	for _, r := range c.Roles {
		role, ep, lt := r, endpoints[r.Name], locals[r.Name]
		fns = append(fns, func(ctx context.Context) error {
			defer ep.CloseAllChannels()
			sess, err := stub.NewSession(role, ep, lt)
			if err != nil {
				return err
			}
			h := stack(role, ep.CLogger)
			return sess.Run(ctx, h, func(hd *stub.Handle) error {
				var err error
				for !hd.Done() {
					switch hd.Kind() {
					case ast.LSend:
						hd, err = hd.Send("payload")
					case ast.LReceive:
						_, hd, err = hd.Recv()
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		})
	}

	if err := runtime.RunAll(context.Background(), fns...); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
}
