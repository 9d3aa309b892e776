package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the tool-audit and prompt-telemetry JSONL streams as
// Prometheus series, registered against a caller-supplied registry rather
// than the global default so tests can assert against an isolated
// collector.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(reg)
//	m.ToolExecutionCounter.WithLabelValues("echo", "ok").Inc()
type Metrics struct {
	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (ok|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution latency in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// PromptRunCounter counts completed prompt windows by outcome status.
	// Labels: status (completed|interrupted|cancelled)
	PromptRunCounter *prometheus.CounterVec

	// PromptCostUSD accumulates estimated LLM cost in USD, one turn at a time.
	PromptCostUSD prometheus.Counter

	// PromptTokensTotal tracks token usage by type as turns complete.
	// Labels: type (input|output)
	PromptTokensTotal *prometheus.CounterVec

	// BudgetAlertsFired counts CostBudgetAlert emissions by threshold.
	// Labels: threshold_percent
	BudgetAlertsFired *prometheus.CounterVec

	// SecretLeakDetections counts SafetyPolicyApplied matches by pattern class.
	// Labels: pattern_class, mode (observe|redact|block)
	SecretLeakDetections *prometheus.CounterVec
}

// NewMetrics constructs and registers every series against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tau_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tau_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		PromptRunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tau_prompt_runs_total",
				Help: "Total number of completed prompt telemetry windows by status",
			},
			[]string{"status"},
		),
		PromptCostUSD: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tau_prompt_cost_usd_total",
				Help: "Estimated cumulative LLM cost in USD across all runs",
			},
		),
		PromptTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tau_prompt_tokens_total",
				Help: "Total tokens consumed by token type",
			},
			[]string{"type"},
		),
		BudgetAlertsFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tau_budget_alerts_total",
				Help: "Total number of cost budget alerts fired by threshold percentage",
			},
			[]string{"threshold_percent"},
		),
		SecretLeakDetections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tau_secret_leak_detections_total",
				Help: "Total number of safety policy matches by pattern class and mode",
			},
			[]string{"pattern_class", "mode"},
		),
	}
}
