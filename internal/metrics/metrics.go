// Package metrics exposes the prometheus collectors of the web frontend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CircuitState mirrors the breaker states as gauge values.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// Collector receives the measurements of the HTTP server and the upstream
// clients.
type Collector interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
	RecordUpstreamCall(upstream, op string, status int, d time.Duration)
	RecordCircuitState(upstream string, state CircuitState)
	RecordStaleResponse(view string)
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) RecordHTTPRequest(string, string, int, time.Duration)  {}
func (NoOp) RecordUpstreamCall(string, string, int, time.Duration) {}
func (NoOp) RecordCircuitState(string, CircuitState)               {}
func (NoOp) RecordStaleResponse(string)                            {}

// Prometheus is a Collector backed by its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
	circuitOpens    *prometheus.CounterVec
	staleResponses  *prometheus.CounterVec
}

func NewPrometheus(namespace string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_calls_total",
				Help:      "Calls to the backend and ML service, by operation and status code (0 = transport error)",
			},
			[]string{"upstream", "op", "code"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_call_duration_seconds",
				Help:      "Upstream call latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"upstream", "op"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state per upstream (0=closed, 1=open, 2=half-open)",
			},
			[]string{"upstream"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Times the circuit breaker opened per upstream",
			},
			[]string{"upstream"},
		),
		staleResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Responses discarded because a newer request for the same view was started",
			},
			[]string{"view"},
		),
	}
	p.registry.MustRegister(
		p.httpRequests, p.httpLatency,
		p.upstreamCalls, p.upstreamLatency,
		p.circuitState, p.circuitOpens,
		p.staleResponses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (p *Prometheus) RecordUpstreamCall(upstream, op string, status int, d time.Duration) {
	p.upstreamCalls.WithLabelValues(upstream, op, strconv.Itoa(status)).Inc()
	p.upstreamLatency.WithLabelValues(upstream, op).Observe(d.Seconds())
}

func (p *Prometheus) RecordCircuitState(upstream string, state CircuitState) {
	p.circuitState.WithLabelValues(upstream).Set(float64(state))
	if state == CircuitOpen {
		p.circuitOpens.WithLabelValues(upstream).Inc()
	}
}

func (p *Prometheus) RecordStaleResponse(view string) {
	p.staleResponses.WithLabelValues(view).Inc()
}

// GaugeFunc registers a gauge sampled from fn at scrape time.
func (p *Prometheus) GaugeFunc(name, help string, fn func() float64) {
	p.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, fn))
}

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry is exposed for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
