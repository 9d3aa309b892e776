package agentloop

import "github.com/tauhq/tau/internal/llm"

// SafetyStage names the point in a turn where the safety policy scanned
// text.
type SafetyStage string

const (
	StageToolOutput  SafetyStage = "tool_output"
	StageModelOutput SafetyStage = "model_output"
)

// SafetyMode selects what the policy does with a match.
type SafetyMode string

const (
	SafetyModeObserve SafetyMode = "observe" // scan and report only
	SafetyModeRedact  SafetyMode = "redact"  // replace matched spans, do not block
	SafetyModeBlock   SafetyMode = "block"   // replace the whole text and mark blocked
)

// EventType names one of the agent loop's emitted event kinds.
type EventType string

const (
	EventAgentStart          EventType = "agent_start"
	EventTurnEnd             EventType = "turn_end"
	EventToolExecutionStart  EventType = "tool_execution_start"
	EventToolExecutionEnd    EventType = "tool_execution_end"
	EventCostUpdated         EventType = "cost_updated"
	EventCostBudgetAlert     EventType = "cost_budget_alert"
	EventSafetyPolicyApplied EventType = "safety_policy_applied"
	EventAgentEnd            EventType = "agent_end"
)

// TurnEndPayload reports one model turn's usage and outcome.
type TurnEndPayload struct {
	Turn               int           `json:"turn"`
	ToolResults        int           `json:"tool_results"`
	RequestDurationMs  int64         `json:"request_duration_ms"`
	Usage              llm.ChatUsage `json:"usage"`
	FinishReason       string        `json:"finish_reason,omitempty"`
}

// ToolExecutionStartPayload marks the beginning of one tool call.
type ToolExecutionStartPayload struct {
	ToolCallID   string `json:"tool_call_id"`
	ToolName     string `json:"tool_name"`
	ArgumentsLen int    `json:"arguments_bytes"`
}

// ToolExecutionResult is the outcome of one tool call, as seen by telemetry.
type ToolExecutionResult struct {
	IsError    bool `json:"is_error"`
	ResultBytes int `json:"result_bytes"`
}

// ToolExecutionEndPayload marks the completion of one tool call.
type ToolExecutionEndPayload struct {
	ToolCallID string              `json:"tool_call_id"`
	ToolName   string              `json:"tool_name"`
	DurationMs *int64              `json:"duration_ms,omitempty"`
	Result     ToolExecutionResult `json:"result"`
}

// CostUpdatedPayload reports the running cost after a turn.
type CostUpdatedPayload struct {
	Turn              int      `json:"turn"`
	TurnCostUSD       float64  `json:"turn_cost_usd"`
	CumulativeCostUSD float64  `json:"cumulative_cost_usd"`
	BudgetUSD         *float64 `json:"budget_usd,omitempty"`
}

// CostBudgetAlertPayload fires when cumulative cost crosses a configured
// percentage of the budget.
type CostBudgetAlertPayload struct {
	Turn              int     `json:"turn"`
	ThresholdPercent  int     `json:"threshold_percent"`
	CumulativeCostUSD float64 `json:"cumulative_cost_usd"`
	BudgetUSD         float64 `json:"budget_usd"`
}

// SafetyPolicyPayload reports one safety-policy scan outcome.
type SafetyPolicyPayload struct {
	Stage        SafetyStage `json:"stage"`
	Mode         SafetyMode  `json:"mode"`
	Blocked      bool        `json:"blocked"`
	MatchedRules []string    `json:"matched_rules"`
	ReasonCodes  []string    `json:"reason_codes"`
}

// AgentEndPayload closes out a run.
type AgentEndPayload struct {
	NewMessages int    `json:"new_messages"`
	FinalPhase  Phase  `json:"final_phase"`
}

// Event is one entry in the agent loop's event stream. Exactly one payload
// field is populated, selected by Type, rather than a sum type.
type Event struct {
	Type       EventType                  `json:"type"`
	TurnEnd    *TurnEndPayload             `json:"turn_end,omitempty"`
	ToolStart  *ToolExecutionStartPayload  `json:"tool_execution_start,omitempty"`
	ToolEnd    *ToolExecutionEndPayload    `json:"tool_execution_end,omitempty"`
	Cost       *CostUpdatedPayload         `json:"cost_updated,omitempty"`
	CostAlert  *CostBudgetAlertPayload     `json:"cost_budget_alert,omitempty"`
	Safety     *SafetyPolicyPayload        `json:"safety_policy_applied,omitempty"`
	AgentEnd   *AgentEndPayload            `json:"agent_end,omitempty"`
}
