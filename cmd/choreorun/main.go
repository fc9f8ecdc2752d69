/*
Loads a bundled example choreography, builds a session for every declared
role, and runs them concurrently to completion over transport.Memory,
printing session metadata per (role, peer) on exit.

This is the runnable analogue of the teacher's cmd/coordinator + cmd/worker
pair, collapsed into one process since a choreography with N roles needs N
endpoints talking to each other, not one external service per role.

Exit codes, per spec.md §6: 0 success, 1 parse/analysis error, 2 projection
error, 3 runtime error.

For usage details, run choreorun with the command line flag -h or --help.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coatyio/choreo/analyzer"
	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/clog"
	"github.com/coatyio/choreo/config"
	"github.com/coatyio/choreo/examples"
	"github.com/coatyio/choreo/middleware"
	"github.com/coatyio/choreo/project"
	"github.com/coatyio/choreo/runtime"
	"github.com/coatyio/choreo/stub"
	"github.com/coatyio/choreo/transport"
)

func main() {
	var help, log, metrics bool
	var name string

	flag.Usage = usage
	flag.StringVar(&name, "e", "pingpong", "bundled example choreography to run")
	flag.BoolVar(&help, "h", false, "Show usage information")
	flag.BoolVar(&log, "l", false, "Show logging output (for debugging)")
	flag.BoolVar(&metrics, "m", false, "Install the Metrics middleware and print its counters on exit")
	flag.Parse()

	if help {
		usage()
		os.Exit(0)
	}
	if log {
		clog.Enable()
	}

	cfg := config.New()
	cfg.Middleware.Metrics = metrics

	ex := examples.NewRegistry().ByName(name)
	if ex == nil {
		fmt.Printf("no bundled example named %q\n", name)
		os.Exit(1)
	}
	c := ex.Build()

	if err := analyzer.Analyze(c); err != nil {
		fmt.Printf("analysis error: %v\n", err)
		os.Exit(1)
	}

	locals, err := project.ProjectAll(c)
	if err != nil {
		fmt.Printf("projection error: %v\n", err)
		os.Exit(2)
	}

	endpoints := make(map[string]*runtime.Endpoint, len(c.Roles))
	for _, r := range c.Roles {
		endpoints[r.Name] = runtime.NewEndpoint(r)
	}
	// Every pair of roles gets a full-duplex Memory channel, whether or not
	// the protocol actually uses it; unused channels just sit idle.
	for i := 0; i < len(c.Roles); i++ {
		for j := i + 1; j < len(c.Roles); j++ {
			a, b := transport.NewMemoryPair()
			endpoints[c.Roles[i].Name].Bind(c.Roles[j], a)
			endpoints[c.Roles[j].Name].Bind(c.Roles[i], b)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Println("Terminating choreorun on signal...")
			cancel()
		}
	}()

	reg := prometheus.NewRegistry()

	var fns []runtime.RunFunc
	for _, r := range c.Roles {
		role, ep, lt := r, endpoints[r.Name], locals[r.Name]
		fns = append(fns, func(ctx context.Context) error {
			defer ep.CloseAllChannels()
			ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.DefaultTimeout)
			defer cancel()

			sess, err := stub.NewSession(role, ep, lt)
			if err != nil {
				return err
			}
			h := buildHandler(cfg, reg, role, ep.CLogger)
			return sess.Run(ctx, h, func(hd *stub.Handle) error {
				return drive(hd, defaultDecider())
			})
		})
	}

	if err := runtime.RunAll(ctx, fns...); err != nil {
		fmt.Printf("runtime error: %v\n", err)
		os.Exit(3)
	}

	if cfg.Middleware.Metrics {
		mfs, err := reg.Gather()
		if err == nil {
			fmt.Println("metrics:")
			for _, mf := range mfs {
				fmt.Printf("  %s: %d samples\n", mf.GetName(), len(mf.GetMetric()))
			}
		}
	}

	fmt.Println("session metadata:")
	for _, r := range c.Roles {
		ep := endpoints[r.Name]
		for _, peer := range ep.Peers() {
			md := ep.Metadata(ast.Role{Name: peer}).Snapshot()
			fmt.Printf("  %s -> %s: %+v\n", r.Name, peer, &md)
		}
	}
}

// buildHandler assembles the middleware chain Trace(Retry(Metrics(Base)))
// per cfg.Middleware's toggles, tuned by cfg.Runtime, mirroring config.New's
// own default chain (spec.md §4.6).
func buildHandler(cfg *config.Config, reg *prometheus.Registry, role ast.Role, log *clog.CLogger) runtime.ChoreoHandler {
	var h runtime.ChoreoHandler = runtime.NewBaseHandler()
	if cfg.Middleware.Metrics {
		h = middleware.NewMetrics(h, reg, "choreorun", role.Name)
	}
	if cfg.Middleware.Retry {
		h = middleware.NewRetry(h, cfg.Runtime.MaxRetries, cfg.Runtime.BaseDelay, cfg.Runtime.MaxDelay)
	}
	if cfg.Middleware.Trace {
		h = middleware.NewTrace(h, log)
	}
	return h
}

func usage() {
	fmt.Printf(`usage: choreorun [-h|--help] [-l] [-e example]

Runs a bundled example choreography to completion over an in-process
transport, one endpoint per role, printing final session metadata.

The following bundled examples are available via -e:

`)
	reg := examples.NewRegistry()
	maxLen := 0
	for _, name := range reg.Names() {
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}
	for _, name := range reg.Names() {
		fmt.Printf("  %*s: %s\n", maxLen, name, reg.ByName(name).Description)
	}
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
}
