package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// RateLimited counts requests rejected by the rate limiter
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected with 429."},
	)

	// Solves counts optimization runs by algorithm and outcome (ok, invalid, error)
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrp_solves_total", Help: "Optimization runs by algorithm and outcome."},
		[]string{"algorithm", "outcome"},
	)
	// SolveDuration records solver wall time in seconds
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "vrp_solve_duration_seconds", Help: "Solver wall time in seconds.", Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30}},
		[]string{"algorithm"},
	)
	// SolveImprovement records the annealing improvement over its starting solution, in percent
	SolveImprovement = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "vrp_sa_improvement_percent", Help: "Annealing improvement over the starting solution.", Buckets: []float64{0, 1, 5, 10, 20, 30, 50, 75}},
	)
	// SAIterations records iterations completed per annealing run
	SAIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "vrp_sa_iterations", Help: "Iterations completed per annealing run.", Buckets: prometheus.ExponentialBuckets(100, 4, 8)},
	)

	// Jobs counts async jobs reaching a terminal state
	Jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vrp_jobs_total", Help: "Async jobs by terminal status."},
		[]string{"status"},
	)
	// JobsInFlight is the number of queued or running jobs
	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "vrp_jobs_in_flight", Help: "Queued or running jobs."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(RateLimited)
		Registry.MustRegister(Solves)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveImprovement)
		Registry.MustRegister(SAIterations)
		Registry.MustRegister(Jobs)
		Registry.MustRegister(JobsInFlight)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
