package agentloop

import (
	"context"
	"time"

	"github.com/tauhq/tau/internal/llm"
	"github.com/tauhq/tau/pkg/tau"
)

// Loop drives the Planning → Generating → ToolDispatch* → ComposingReply →
// Done state machine for one agent run, re-entering Generating after every
// round of tool dispatch until the model stops requesting tools or the
// turn cap is reached.
type Loop struct {
	client   llm.Client
	registry *Registry
}

// New builds a Loop over an LLM client and a tool registry. registry may
// be nil (no tools available; every model tool call is rejected).
func New(client llm.Client, registry *Registry) *Loop {
	return &Loop{client: client, registry: registry}
}

// Run executes the turn loop. session is the prior message lineage
// (excluding the system prompt); systemPrompt is the role-composed prompt
// for this turn (see internal/router.ComposePrompt).
func (l *Loop) Run(ctx context.Context, systemPrompt string, session []tau.Message, model string, cfg Config) Result {
	cfg = sanitizeConfig(cfg)

	var events []Event
	emit := func(e Event) { events = append(events, e) }
	emit(Event{Type: EventAgentStart})

	messages := append([]tau.Message(nil), session...)
	startLen := len(messages)

	var cumulativeCost float64
	alertedThresholds := make(map[int]bool)
	finalPhase := PhaseDone
	finishReason := ""

	for turn := 1; turn <= cfg.MaxTurns; turn++ {
		if ctx.Err() != nil {
			finalPhase = PhaseCancelled
			break
		}

		req := llm.ChatRequest{
			Model:    model,
			Messages: append([]tau.Message{tau.NewTextMessage(tau.RoleSystem, systemPrompt)}, messages...),
		}
		if l.registry != nil {
			req.Tools = toolDefinitions(l.registry)
		}

		start := time.Now()
		resp, err := l.client.Complete(req)
		durationMs := time.Since(start).Milliseconds()
		if err != nil {
			finalPhase = PhaseDone
			finishReason = "error"
			break
		}

		toolCalls := resp.Message.ToolCalls()
		emit(Event{Type: EventTurnEnd, TurnEnd: &TurnEndPayload{
			Turn:              turn,
			ToolResults:       len(toolCalls),
			RequestDurationMs: durationMs,
			Usage:             resp.Usage,
			FinishReason:      resp.FinishReason,
		}})
		messages = append(messages, resp.Message)
		finishReason = resp.FinishReason

		turnCost := cfg.Cost.turnCost(resp.Usage.Input, resp.Usage.Output)
		cumulativeCost += turnCost
		emit(Event{Type: EventCostUpdated, Cost: &CostUpdatedPayload{
			Turn:              turn,
			TurnCostUSD:       turnCost,
			CumulativeCostUSD: cumulativeCost,
			BudgetUSD:         cfg.BudgetUSD,
		}})
		if cfg.BudgetUSD != nil && *cfg.BudgetUSD > 0 {
			utilization := cumulativeCost / *cfg.BudgetUSD * 100
			for _, threshold := range cfg.BudgetAlertThresholdsPercent {
				if utilization >= float64(threshold) && !alertedThresholds[threshold] {
					alertedThresholds[threshold] = true
					emit(Event{Type: EventCostBudgetAlert, CostAlert: &CostBudgetAlertPayload{
						Turn:              turn,
						ThresholdPercent:  threshold,
						CumulativeCostUSD: cumulativeCost,
						BudgetUSD:         *cfg.BudgetUSD,
					}})
				}
			}
		}

		if len(toolCalls) == 0 {
			finalPhase = PhaseDone
			break
		}

		if ctx.Err() != nil {
			finalPhase = PhaseCancelled
			break
		}

		toolResults := l.dispatchTools(ctx, toolCalls, cfg, emit)
		messages = append(messages, tau.Message{Role: tau.RoleTool, Content: toolResultParts(toolResults)})

		if ctx.Err() != nil {
			finalPhase = PhaseCancelled
			break
		}
	}

	newMessages := len(messages) - startLen
	emit(Event{Type: EventAgentEnd, AgentEnd: &AgentEndPayload{NewMessages: newMessages, FinalPhase: finalPhase}})

	return Result{
		FinalPhase:   finalPhase,
		Messages:     messages,
		NewMessages:  newMessages,
		FinishReason: finishReason,
		Events:       events,
	}
}

func (l *Loop) dispatchTools(ctx context.Context, calls []tau.ToolCall, cfg Config, emit func(Event)) []tau.ToolResult {
	results := make([]tau.ToolResult, 0, len(calls))
	for _, call := range calls {
		if ctx.Err() != nil {
			results = append(results, tau.ToolResult{ToolCallID: call.ID, Name: call.Name, Text: "cancelled", IsError: true})
			continue
		}

		emit(Event{Type: EventToolExecutionStart, ToolStart: &ToolExecutionStartPayload{
			ToolCallID:   call.ID,
			ToolName:     call.Name,
			ArgumentsLen: len(call.Arguments),
		}})

		start := time.Now()
		resultText, isError := l.executeTool(ctx, call, cfg.AllowedCapabilities)

		if policy, scanned := ScanText(StageToolOutput, cfg.SafetyMode, resultText); policy != nil {
			emit(Event{Type: EventSafetyPolicyApplied, Safety: policy})
			resultText = scanned
			if policy.Blocked {
				isError = true
			}
		}

		durationMs := time.Since(start).Milliseconds()
		emit(Event{Type: EventToolExecutionEnd, ToolEnd: &ToolExecutionEndPayload{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			DurationMs: &durationMs,
			Result:     ToolExecutionResult{IsError: isError, ResultBytes: len(resultText)},
		}})

		results = append(results, tau.ToolResult{ToolCallID: call.ID, Name: call.Name, Text: resultText, IsError: isError})
	}
	return results
}

func (l *Loop) executeTool(ctx context.Context, call tau.ToolCall, allowlist []string) (string, bool) {
	tool, ok := l.registry.get(call.Name)
	if !ok {
		return "tool not found: " + call.Name, true
	}
	if !allowed(tool, allowlist) {
		return "tool denied by capability policy: " + call.Name, true
	}
	return tool.Execute(ctx, call.Arguments)
}

func toolResultParts(results []tau.ToolResult) []tau.ContentPart {
	parts := make([]tau.ContentPart, len(results))
	for i, r := range results {
		result := r
		parts[i] = tau.ContentPart{Kind: tau.PartToolResult, ToolResult: &result}
	}
	return parts
}

func toolDefinitions(r *Registry) []tau.ToolDefinition {
	defs := make([]tau.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		defs = append(defs, tau.ToolDefinition{Name: name, Description: "", Parameters: map[string]any{"type": "object", "capabilities": t.Capabilities()}})
	}
	return defs
}
