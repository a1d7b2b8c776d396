// Package metrics wraps github.com/prometheus/client_golang behind the
// teacher's own NewRegisteredCounter/NewRegisteredGauge/NewRegisteredSummary
// idiom, so call sites across this repository read the same way they do in
// the teacher's miner/worker.go.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide metric set. A single DefaultRegistry is
// normally enough; tests may build their own to avoid collisions.
type Registry struct {
	reg        *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	summaries  map[string]*prometheus.SummaryVec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:       prometheus.NewRegistry(),
		counters:  make(map[string]*prometheus.CounterVec),
		gauges:    make(map[string]*prometheus.GaugeVec),
		summaries: make(map[string]*prometheus.SummaryVec),
	}
}

// DefaultRegistry is the registry used by package-level helpers and is what
// GET /metrics renders by default.
var DefaultRegistry = NewRegistry()

// Counter is a monotonically increasing value, e.g. blocks_proposed_total.
type Counter struct {
	vec    *prometheus.CounterVec
	labels prometheus.Labels
}

func (c *Counter) Inc()            { c.vec.With(c.labels).Inc() }
func (c *Counter) Add(delta float64) { c.vec.With(c.labels).Add(delta) }

// Gauge is a point-in-time value, e.g. chain_head_height.
type Gauge struct {
	vec    *prometheus.GaugeVec
	labels prometheus.Labels
}

func (g *Gauge) Set(v float64) { g.vec.With(g.labels).Set(v) }
func (g *Gauge) Inc()          { g.vec.With(g.labels).Inc() }
func (g *Gauge) Dec()          { g.vec.With(g.labels).Dec() }

// Summary observes a distribution of values, e.g. block_build_duration_seconds.
type Summary struct {
	vec    *prometheus.SummaryVec
	labels prometheus.Labels
}

func (s *Summary) Observe(v float64) { s.vec.With(s.labels).Observe(v) }

// NewRegisteredCounter returns (creating if necessary) a counter with the
// given name, mirroring the teacher's metrics.NewRegisteredCounter(name, nil).
func (r *Registry) NewRegisteredCounter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, nil)
		r.reg.MustRegister(vec)
		r.counters[name] = vec
	}
	return &Counter{vec: vec, labels: prometheus.Labels{}}
}

// NewRegisteredGauge returns (creating if necessary) a gauge with the given name.
func (r *Registry) NewRegisteredGauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, nil)
		r.reg.MustRegister(vec)
		r.gauges[name] = vec
	}
	return &Gauge{vec: vec, labels: prometheus.Labels{}}
}

// NewRegisteredSummary returns (creating if necessary) a summary with the given name.
func (r *Registry) NewRegisteredSummary(name, help string) *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.summaries[name]
	if !ok {
		vec = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       name,
			Help:       help,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, nil)
		r.reg.MustRegister(vec)
		r.summaries[name] = vec
	}
	return &Summary{vec: vec, labels: prometheus.Labels{}}
}

// Handler exposes this registry as a Prometheus text-exposition HTTP handler
// for GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Package-level convenience wrappers over DefaultRegistry.

func NewRegisteredCounter(name, help string) *Counter { return DefaultRegistry.NewRegisteredCounter(name, help) }
func NewRegisteredGauge(name, help string) *Gauge     { return DefaultRegistry.NewRegisteredGauge(name, help) }
func NewRegisteredSummary(name, help string) *Summary { return DefaultRegistry.NewRegisteredSummary(name, help) }
func Handler() http.Handler                           { return DefaultRegistry.Handler() }
