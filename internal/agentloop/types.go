// Package agentloop implements the per-turn agent state machine: message
// reconstruction, model invocation, tool dispatch under a capability
// policy, a credential-leak safety scan over tool output, and the full
// AgentStart/TurnEnd/ToolExecutionStart-End/CostUpdated/CostBudgetAlert/
// AgentEnd event stream telemetry consumes.
package agentloop

import "github.com/tauhq/tau/pkg/tau"

// Phase is the agent loop's per-turn state.
type Phase string

const (
	PhasePlanning       Phase = "planning"
	PhaseGenerating     Phase = "generating"
	PhaseToolDispatch   Phase = "tool_dispatch"
	PhaseComposingReply Phase = "composing_reply"
	PhaseDone           Phase = "done"
	PhaseCancelled      Phase = "cancelled"
)

// CostModel prices a turn's token usage in USD.
type CostModel struct {
	CostPerInputToken  float64
	CostPerOutputToken float64
}

func (c CostModel) turnCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.CostPerInputToken + float64(outputTokens)*c.CostPerOutputToken
}

// Config configures one Loop run.
type Config struct {
	MaxTurns int

	Cost CostModel
	// BudgetUSD, when set, enables CostBudgetAlert emission at each
	// crossed threshold in BudgetAlertThresholdsPercent (default 50/80/100).
	BudgetUSD                   *float64
	BudgetAlertThresholdsPercent []int

	SafetyMode SafetyMode
	// AllowedCapabilities restricts which tool capability classes may run;
	// nil allows every registered tool.
	AllowedCapabilities []string
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.SafetyMode == "" {
		cfg.SafetyMode = SafetyModeRedact
	}
	if len(cfg.BudgetAlertThresholdsPercent) == 0 {
		cfg.BudgetAlertThresholdsPercent = []int{50, 80, 100}
	}
	return cfg
}

// Result is what Run returns once the turn loop reaches Done or Cancelled.
type Result struct {
	FinalPhase   Phase
	Messages     []tau.Message // full session, including newly appended messages
	NewMessages  int
	FinishReason string
	Events       []Event
}
