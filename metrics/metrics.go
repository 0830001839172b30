// Package metrics holds the Prometheus collectors of the mesh. Collectors
// live on a private registry so tests and multiple meshes in one process do
// not collide. Every method is safe on a nil *Collector.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "legalmesh"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector records turn, routing, tool, delegate and HTTP metrics.
type Collector struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  prometheus.Histogram
	routeTotal    *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	delegateCalls *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// NewCollector registers all collectors on a fresh registry, together with
// the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		}, []string{"status"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a turn.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		routeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "route_total",
			Help:      "Classifier routing decisions by label.",
		}, []string{"label"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and result status.",
		}, []string{"tool", "status"}),
		delegateCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delegate_calls_total",
			Help:      "Orchestrator delegate runs by delegate and outcome.",
		}, []string{"delegate", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by path and status code.",
		}, []string{"path", "code"}),
	}

	reg.MustRegister(
		c.turnsTotal,
		c.turnDuration,
		c.routeTotal,
		c.toolCalls,
		c.delegateCalls,
		c.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveTurn records one finished turn.
func (c *Collector) ObserveTurn(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(status(err)).Inc()
	c.turnDuration.Observe(d.Seconds())
}

// ObserveRoute records a classifier decision.
func (c *Collector) ObserveRoute(label string) {
	if c == nil {
		return
	}
	c.routeTotal.WithLabelValues(label).Inc()
}

// ObserveToolCall records a tool call. resultStatus is the in-band status
// of the result ("success", "error", ...) or empty for text results.
func (c *Collector) ObserveToolCall(tool, resultStatus string) {
	if c == nil {
		return
	}
	if resultStatus == "" {
		resultStatus = StatusOK
	}
	c.toolCalls.WithLabelValues(tool, resultStatus).Inc()
}

// ObserveDelegate records an orchestrator delegate run.
func (c *Collector) ObserveDelegate(delegate string, err error) {
	if c == nil {
		return
	}
	c.delegateCalls.WithLabelValues(delegate, status(err)).Inc()
}

// ObserveHTTP records a served request.
func (c *Collector) ObserveHTTP(path string, code int) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
