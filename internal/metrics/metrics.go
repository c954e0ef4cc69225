package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Routing collects metrics about calls to the routing service
type Routing struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	UnreachableCells prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// Pipeline collects metrics about optimization runs
type Pipeline struct {
	Runs             *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	AssignedPoints   prometheus.Gauge
	UnassignedPoints prometheus.Gauge
	BoundaryPoints   prometheus.Gauge
}

// Registry is a dedicated Prometheus registry with all collectors registered
type Registry struct {
	*prometheus.Registry
	Routing  *Routing
	Pipeline *Pipeline
}

// New creates a registry with routing, pipeline, Go and process collectors
func New(namespace string) *Registry {
	reg := prometheus.NewRegistry()

	routing := &Routing{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_requests_total",
				Help:      "Routing service requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "routing_request_duration_seconds",
				Help:      "Routing service request duration in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		UnreachableCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_unreachable_cells_total",
			Help:      "Distance matrix cells left unreachable.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_cache_hits_total",
			Help:      "Grid point to port distances served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_cache_misses_total",
			Help:      "Grid points that needed a routing service lookup.",
		}),
	}

	pipeline := &Pipeline{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Optimization runs by status.",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Optimization run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		AssignedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assigned_grid_points",
			Help:      "Grid points with an optimal port in the last run.",
		}),
		UnassignedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unassigned_grid_points",
			Help:      "Grid points without a reachable port in the last run.",
		}),
		BoundaryPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boundary_grid_points",
			Help:      "Grid points within the gradient threshold in the last run.",
		}),
	}

	reg.MustRegister(
		routing.Requests, routing.RequestDuration, routing.UnreachableCells,
		routing.CacheHits, routing.CacheMisses,
		pipeline.Runs, pipeline.RunDuration,
		pipeline.AssignedPoints, pipeline.UnassignedPoints, pipeline.BoundaryPoints,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{Registry: reg, Routing: routing, Pipeline: pipeline}
}

// ObserveRequest records one routing request. Safe on a nil receiver.
func (r *Routing) ObserveRequest(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.Requests.WithLabelValues(endpoint, outcome).Inc()
	r.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RejectRequest counts a request refused by the circuit breaker. Safe on a
// nil receiver.
func (r *Routing) RejectRequest(endpoint string) {
	if r == nil {
		return
	}
	r.Requests.WithLabelValues(endpoint, "circuit_open").Inc()
}

// AddUnreachable counts unreachable matrix cells. Safe on a nil receiver.
func (r *Routing) AddUnreachable(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.UnreachableCells.Add(float64(n))
}

// ObserveCache records cache hits and misses. Safe on a nil receiver.
func (r *Routing) ObserveCache(hits, misses int) {
	if r == nil {
		return
	}
	r.CacheHits.Add(float64(hits))
	r.CacheMisses.Add(float64(misses))
}

// ObserveRun records a finished run. Safe on a nil receiver.
func (p *Pipeline) ObserveRun(status string, d time.Duration, assigned, unassigned, boundaries int) {
	if p == nil {
		return
	}
	p.Runs.WithLabelValues(status).Inc()
	p.RunDuration.Observe(d.Seconds())
	if status != "ok" {
		return
	}
	p.AssignedPoints.Set(float64(assigned))
	p.UnassignedPoints.Set(float64(unassigned))
	p.BoundaryPoints.Set(float64(boundaries))
}
