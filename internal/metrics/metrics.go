package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics tracks tool invocations, OpenCTI round trips and observable
// gateway outcomes.
type Metrics struct {
	registry *prometheus.Registry

	ToolCalls          *prometheus.CounterVec
	ToolDuration       *prometheus.HistogramVec
	RemoteCalls        *prometheus.CounterVec
	RemoteDuration     *prometheus.HistogramVec
	ObservableOutcomes *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so several instances
// can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ctibridge_tool_calls_total",
			Help: "Tool invocations by tool and result (ok, error).",
		}, []string{"tool", "result"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctibridge_tool_duration_seconds",
			Help:    "Duration of tool invocations.",
			Buckets: latencyBuckets,
		}, []string{"tool"}),
		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ctibridge_opencti_requests_total",
			Help: "GraphQL operations sent to OpenCTI by operation and result.",
		}, []string{"operation", "result"}),
		RemoteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ctibridge_opencti_request_duration_seconds",
			Help:    "Round-trip time of GraphQL operations sent to OpenCTI.",
			Buckets: latencyBuckets,
		}, []string{"operation"}),
		ObservableOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ctibridge_observable_outcomes_total",
			Help: "Observable gateway results by operation and status (exists, created, enriched or error category).",
		}, []string{"operation", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

// ObserveRemoteCall records one OpenCTI round trip.
func (m *Metrics) ObserveRemoteCall(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(operation, result(err != nil)).Inc()
	m.RemoteDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, result(failed)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveOutcome records how an observable gateway operation ended.
func (m *Metrics) ObserveOutcome(operation, status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.ObservableOutcomes.WithLabelValues(operation, status).Inc()
}
