package telemetry

import (
	"strconv"

	"github.com/tauhq/tau/internal/agentloop"
)

// Recorder fans one agent loop event out to the tool-audit log, the
// prompt-telemetry log, and the Prometheus series, so a caller driving a
// Loop.Run only has to feed each event to one place.
type Recorder struct {
	ToolAudit *ToolAuditLogger
	Prompt    *PromptTelemetryLogger
	Metrics   *Metrics
}

// NewRecorder wires the three telemetry sinks together. Any of them may be
// nil to disable that sink.
func NewRecorder(toolAudit *ToolAuditLogger, prompt *PromptTelemetryLogger, metrics *Metrics) *Recorder {
	return &Recorder{ToolAudit: toolAudit, Prompt: prompt, Metrics: metrics}
}

// Observe records e for prompt run promptID at nowUnixMs across every
// configured sink. JSONL writes are attempted even if an earlier one
// fails, and the first error encountered is returned.
func (r *Recorder) Observe(e agentloop.Event, promptID string, nowUnixMs int64) error {
	var firstErr error

	if r.ToolAudit != nil {
		if err := r.ToolAudit.LogEvent(e, nowUnixMs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Prompt != nil {
		if err := r.Prompt.LogEvent(e, promptID, nowUnixMs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if r.Metrics != nil {
		r.observeMetrics(e)
	}

	return firstErr
}

func (r *Recorder) observeMetrics(e agentloop.Event) {
	switch e.Type {
	case agentloop.EventToolExecutionEnd:
		p := e.ToolEnd
		status := "ok"
		if p.Result.IsError {
			status = "error"
		}
		r.Metrics.ToolExecutionCounter.WithLabelValues(p.ToolName, status).Inc()
		if p.DurationMs != nil {
			r.Metrics.ToolExecutionDuration.WithLabelValues(p.ToolName).Observe(float64(*p.DurationMs) / 1000)
		}
	case agentloop.EventTurnEnd:
		p := e.TurnEnd
		r.Metrics.PromptTokensTotal.WithLabelValues("input").Add(float64(p.Usage.Input))
		r.Metrics.PromptTokensTotal.WithLabelValues("output").Add(float64(p.Usage.Output))
	case agentloop.EventCostUpdated:
		r.Metrics.PromptCostUSD.Add(e.Cost.TurnCostUSD)
	case agentloop.EventCostBudgetAlert:
		p := e.CostAlert
		r.Metrics.BudgetAlertsFired.WithLabelValues(strconv.Itoa(p.ThresholdPercent)).Inc()
	case agentloop.EventSafetyPolicyApplied:
		p := e.Safety
		for _, code := range p.ReasonCodes {
			r.Metrics.SecretLeakDetections.WithLabelValues(secretLeakPatternClass(code), string(p.Mode)).Inc()
		}
	case agentloop.EventAgentEnd:
		status := "completed"
		if e.AgentEnd.FinalPhase != agentloop.PhaseDone {
			status = string(e.AgentEnd.FinalPhase)
		}
		r.Metrics.PromptRunCounter.WithLabelValues(status).Inc()
	}
}
