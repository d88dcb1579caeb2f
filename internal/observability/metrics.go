package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	sourceConnectTotal    *prometheus.CounterVec
	sourceConnectDuration *prometheus.HistogramVec
	sourceCapabilities    *prometheus.GaugeVec
	initTotal             *prometheus.CounterVec
	liveConnections       prometheus.Gauge

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	agentRunTotal    *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	agentErrorsTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sourceConnectTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "source_connect_total",
					Help: "Capability source connection attempts by source, transport and status.",
				},
				[]string{"source", "transport", "status"},
			),
			sourceConnectDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "source_connect_duration_seconds",
					Help:    "Capability source connect and enumerate duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"source", "transport"},
			),
			sourceCapabilities: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "source_capabilities",
					Help: "Capabilities contributed by each source in the last initialization.",
				},
				[]string{"source"},
			),
			initTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_init_total",
					Help: "Agent initializations by outcome.",
				},
				[]string{"outcome"},
			),
			liveConnections: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "live_connections",
					Help: "Connections owned by the current resource handle.",
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_errors_total",
					Help: "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_total",
					Help: "Total agent runs by provider and status.",
				},
				[]string{"provider", "status"},
			),
			agentRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_run_duration_seconds",
					Help:    "Agent run duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			agentErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_errors_total",
					Help: "Total agent errors by provider.",
				},
				[]string{"provider"},
			),
		}

		prometheus.MustRegister(
			m.sourceConnectTotal,
			m.sourceConnectDuration,
			m.sourceCapabilities,
			m.initTotal,
			m.liveConnections,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.agentRunTotal,
			m.agentRunDuration,
			m.agentErrorsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordSourceConnect(source, transport string, duration time.Duration, success bool, capabilities int) {
	m := getMetrics()
	m.sourceConnectTotal.WithLabelValues(source, transport, status(success)).Inc()
	m.sourceConnectDuration.WithLabelValues(source, transport).Observe(duration.Seconds())
	m.sourceCapabilities.WithLabelValues(source).Set(float64(capabilities))
}

func RecordInit(outcome string) {
	getMetrics().initTotal.WithLabelValues(outcome).Inc()
}

func SetLiveConnections(count int) {
	getMetrics().liveConnections.Set(float64(count))
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordAgentRun(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.agentRunTotal.WithLabelValues(provider, status(success)).Inc()
	m.agentRunDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.agentErrorsTotal.WithLabelValues(provider).Inc()
	}
}
