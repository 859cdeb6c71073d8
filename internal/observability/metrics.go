package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects runtime counters and histograms.
//
// Registered with the default Prometheus registry so the serve command can
// expose them through promhttp.
type Metrics struct {
	// MessageCounter tracks messages by channel and direction.
	MessageCounter *prometheus.CounterVec

	// LLMRequestDuration measures LLM round-trip latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and status.
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// CompactionCounter counts compaction runs by outcome.
	CompactionCounter *prometheus.CounterVec

	// ActiveSessions gauges sessions touched since startup.
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all metrics. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		MessageCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_total",
				Help: "Messages processed by channel and direction",
			},
			[]string{"channel", "direction"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_llm_request_duration_seconds",
				Help:    "LLM request latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_llm_requests_total",
				Help: "LLM requests by provider and status",
			},
			[]string{"provider", "status"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_tool_executions_total",
				Help: "Tool invocations by name and status",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_tool_execution_duration_seconds",
				Help:    "Tool execution time in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		CompactionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_compactions_total",
				Help: "History compaction runs by outcome",
			},
			[]string{"outcome"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_active_sessions",
				Help: "Sessions touched since startup",
			},
		),
	}
}
