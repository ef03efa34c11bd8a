package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "nodegraph"

// Metrics holds the editor's Prometheus metrics on a private registry. It
// implements editor.Observer.
type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	submissions  *prometheus.CounterVec
	nodes        prometheus.Gauge
	recomputes   prometheus.Counter
	surfaces     prometheus.Gauge
	requests     *prometheus.CounterVec
	requestTimes *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Editor commands by operation and result.",
		}, []string{"op", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Workflow submissions by result.",
		}, []string{"result"}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "nodes",
			Help:      "Nodes in the graph.",
		}),
		recomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_recomputes_total",
			Help:      "Connection path recomputes of the pipeline view.",
		}),
		surfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "surfaces_connected",
			Help:      "Rendering surfaces with an open event stream or websocket.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status_code"}),
		requestTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(m.commands, m.submissions, m.nodes, m.recomputes, m.surfaces, m.requests, m.requestTimes)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) CommandDone(op string, err error) {
	m.commands.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) Submitted(err error) {
	m.submissions.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Nodes(n int) { m.nodes.Set(float64(n)) }

func (m *Metrics) Recomputed() { m.recomputes.Inc() }

// Surfaces sets the connected surface gauge.
func (m *Metrics) Surfaces(n int) { m.surfaces.Set(float64(n)) }

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(route string, status int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestTimes.WithLabelValues(route).Observe(d.Seconds())
}
