package telemetry

import (
	"encoding/json"
	"math"
	"strings"
	"sync"

	"github.com/tauhq/tau/internal/agentloop"
	"github.com/tauhq/tau/internal/atomicfile"
)

// PromptTelemetryLogger appends one JSONL record per completed
// AgentStart→AgentEnd window. A second AgentStart observed while a window
// is still open finalizes the prior window as status "interrupted" before
// opening the new one — a run never silently vanishes from the log just
// because its AgentEnd was lost.
type PromptTelemetryLogger struct {
	path string

	mu      sync.Mutex
	promptN int
	run     *promptRunState
}

type promptRunState struct {
	promptID            string
	startedUnixMs       int64
	turnCount           int
	requestDurationTotal int64
	finishReason        string
	inputTokens         uint64
	outputTokens        uint64
	totalTokens         uint64
	cumulativeCostUSD   float64
	budgetUSD           *float64
	budgetAlerts        int
	toolCalls           int
	toolErrors          int
	leakDetections      int
	leakCounts          map[string]int
	redactionPolicy     string
}

// OpenPromptTelemetryLogger opens (creating as needed) the JSONL file at path.
func OpenPromptTelemetryLogger(path string) (*PromptTelemetryLogger, error) {
	return &PromptTelemetryLogger{path: path}, nil
}

type tokenUsageRecord struct {
	Input  uint64 `json:"input"`
	Output uint64 `json:"output"`
	Total  uint64 `json:"total"`
}

type costRecord struct {
	EstimatedUSD      float64  `json:"estimated_usd"`
	BudgetUSD         *float64 `json:"budget_usd,omitempty"`
	BudgetUtilization *float64 `json:"budget_utilization,omitempty"`
	BudgetAlerts      int      `json:"budget_alerts"`
}

type secretLeakRecord struct {
	DetectionsTotal    int            `json:"detections_total"`
	PatternClassCounts map[string]int `json:"pattern_class_counts"`
}

type promptTelemetryRecord struct {
	RecordType            string           `json:"record_type"`
	SchemaVersion         int              `json:"schema_version"`
	PromptID              string           `json:"prompt_id"`
	Status                string           `json:"status"`
	Success               bool             `json:"success"`
	StartedUnixMs         int64            `json:"started_unix_ms"`
	DurationMs            int64            `json:"duration_ms"`
	TurnCount             int              `json:"turn_count"`
	RequestDurationMsTotal int64            `json:"request_duration_ms_total"`
	FinishReason          string           `json:"finish_reason,omitempty"`
	TokenUsage            tokenUsageRecord `json:"token_usage"`
	Cost                  costRecord       `json:"cost"`
	ToolCalls             int              `json:"tool_calls"`
	ToolErrors            int              `json:"tool_errors"`
	SecretLeak            secretLeakRecord `json:"secret_leak"`
	RedactionPolicy       string           `json:"redaction_policy,omitempty"`
}

const promptTelemetrySchemaVersion = 1

func saturatingAddUint64(a uint64, b int) uint64 {
	if b < 0 {
		return a
	}
	bb := uint64(b)
	if a > math.MaxUint64-bb {
		return math.MaxUint64
	}
	return a + bb
}

// secretLeakPatternClass strips the "secret_leak." prefix a reason code
// carries, yielding the bare pattern-class key used in the histogram.
func secretLeakPatternClass(reasonCode string) string {
	return strings.TrimPrefix(reasonCode, "secret_leak.")
}

// LogEvent feeds one agent loop event into the current run window,
// opening a window on AgentStart (finalizing any still-open prior window
// as interrupted) and closing it on AgentEnd.
func (l *PromptTelemetryLogger) LogEvent(e agentloop.Event, promptID string, nowUnixMs int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch e.Type {
	case agentloop.EventAgentStart:
		if l.run != nil {
			if err := l.finalizeLocked("interrupted", false, nowUnixMs); err != nil {
				return err
			}
		}
		l.promptN++
		l.run = &promptRunState{
			promptID:      promptID,
			startedUnixMs: nowUnixMs,
			leakCounts:    make(map[string]int),
		}
	case agentloop.EventTurnEnd:
		if l.run == nil {
			return nil
		}
		p := e.TurnEnd
		l.run.turnCount++
		l.run.requestDurationTotal += p.RequestDurationMs
		l.run.finishReason = p.FinishReason
		l.run.inputTokens = saturatingAddUint64(l.run.inputTokens, p.Usage.Input)
		l.run.outputTokens = saturatingAddUint64(l.run.outputTokens, p.Usage.Output)
		l.run.totalTokens = saturatingAddUint64(l.run.totalTokens, p.Usage.Total)
	case agentloop.EventCostUpdated:
		if l.run == nil {
			return nil
		}
		p := e.Cost
		l.run.cumulativeCostUSD = p.CumulativeCostUSD
		l.run.budgetUSD = p.BudgetUSD
	case agentloop.EventCostBudgetAlert:
		if l.run == nil {
			return nil
		}
		l.run.budgetAlerts++
	case agentloop.EventToolExecutionEnd:
		if l.run == nil {
			return nil
		}
		l.run.toolCalls++
		if e.ToolEnd.Result.IsError {
			l.run.toolErrors++
		}
	case agentloop.EventSafetyPolicyApplied:
		if l.run == nil {
			return nil
		}
		p := e.Safety
		l.run.redactionPolicy = string(p.Mode)
		l.run.leakDetections += len(p.ReasonCodes)
		for _, code := range p.ReasonCodes {
			l.run.leakCounts[secretLeakPatternClass(code)]++
		}
	case agentloop.EventAgentEnd:
		if l.run == nil {
			return nil
		}
		success := e.AgentEnd.FinalPhase == agentloop.PhaseDone
		status := "completed"
		if !success {
			status = string(e.AgentEnd.FinalPhase)
		}
		return l.finalizeLocked(status, success, nowUnixMs)
	}
	return nil
}

func (l *PromptTelemetryLogger) finalizeLocked(status string, success bool, nowUnixMs int64) error {
	run := l.run
	l.run = nil

	var utilization *float64
	if run.budgetUSD != nil && *run.budgetUSD > 1e-9 {
		u := run.cumulativeCostUSD / *run.budgetUSD
		utilization = &u
	}

	record := promptTelemetryRecord{
		RecordType:             "prompt_telemetry",
		SchemaVersion:          promptTelemetrySchemaVersion,
		PromptID:               run.promptID,
		Status:                 status,
		Success:                success,
		StartedUnixMs:          run.startedUnixMs,
		DurationMs:             nowUnixMs - run.startedUnixMs,
		TurnCount:              run.turnCount,
		RequestDurationMsTotal: run.requestDurationTotal,
		FinishReason:           run.finishReason,
		TokenUsage: tokenUsageRecord{
			Input:  run.inputTokens,
			Output: run.outputTokens,
			Total:  run.totalTokens,
		},
		Cost: costRecord{
			EstimatedUSD:      run.cumulativeCostUSD,
			BudgetUSD:         run.budgetUSD,
			BudgetUtilization: utilization,
			BudgetAlerts:      run.budgetAlerts,
		},
		ToolCalls:  run.toolCalls,
		ToolErrors: run.toolErrors,
		SecretLeak: secretLeakRecord{
			DetectionsTotal:    run.leakDetections,
			PatternClassCounts: run.leakCounts,
		},
		RedactionPolicy: run.redactionPolicy,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return atomicfile.AppendLine(l.path, line)
}
