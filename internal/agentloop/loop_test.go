package agentloop

import (
	"context"
	"testing"

	"github.com/tauhq/tau/internal/llm"
	"github.com/tauhq/tau/pkg/tau"
)

type scriptedClient struct {
	responses []llm.ChatResponse
	calls     int
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Complete(req llm.ChatRequest) (llm.ChatResponse, error) {
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func (c *scriptedClient) CompleteWithStream(req llm.ChatRequest, sink llm.StreamSink) (llm.ChatResponse, error) {
	return c.Complete(req)
}

func toolCallMessage(id, name, args string) tau.Message {
	return tau.Message{Role: tau.RoleAssistant, Content: []tau.ContentPart{
		{Kind: tau.PartToolCall, ToolCall: &tau.ToolCall{ID: id, Name: name, Arguments: args}},
	}}
}

type echoTool struct {
	output string
}

func (e echoTool) Name() string            { return "echo" }
func (e echoTool) Capabilities() []string  { return []string{"readonly"} }
func (e echoTool) Execute(ctx context.Context, argsJSON string) (string, bool) {
	return e.output, false
}

func TestRunNoToolCallsReachesDone(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: tau.NewTextMessage(tau.RoleAssistant, "hello"), FinishReason: "stop", Usage: llm.ChatUsage{Input: 10, Output: 5, Total: 15}},
	}}
	loop := New(client, NewRegistry())
	res := loop.Run(context.Background(), "system prompt", nil, "gpt-4o-mini", Config{})

	if res.FinalPhase != PhaseDone {
		t.Fatalf("phase = %v, want done", res.FinalPhase)
	}
	if res.FinishReason != "stop" {
		t.Fatalf("finish_reason = %q", res.FinishReason)
	}
	if len(res.Events) == 0 || res.Events[0].Type != EventAgentStart {
		t.Fatalf("events = %+v", res.Events)
	}
	last := res.Events[len(res.Events)-1]
	if last.Type != EventAgentEnd || last.AgentEnd.FinalPhase != PhaseDone {
		t.Fatalf("last event = %+v", last)
	}
}

func TestRunDispatchesToolThenComposesReply(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: toolCallMessage("c1", "echo", `{"text":"hi"}`), FinishReason: "tool_calls", Usage: llm.ChatUsage{Input: 5, Output: 5, Total: 10}},
		{Message: tau.NewTextMessage(tau.RoleAssistant, "done"), FinishReason: "stop", Usage: llm.ChatUsage{Input: 6, Output: 2, Total: 8}},
	}}
	loop := New(client, NewRegistry(echoTool{output: "echoed"}))
	res := loop.Run(context.Background(), "system", nil, "gpt-4o-mini", Config{})

	if res.FinalPhase != PhaseDone {
		t.Fatalf("phase = %v", res.FinalPhase)
	}
	var sawStart, sawEnd bool
	for _, e := range res.Events {
		if e.Type == EventToolExecutionStart && e.ToolStart.ToolName == "echo" {
			sawStart = true
		}
		if e.Type == EventToolExecutionEnd && e.ToolEnd.ToolName == "echo" && !e.ToolEnd.Result.IsError {
			sawEnd = true
		}
	}
	if !sawStart || !sawEnd {
		t.Fatalf("missing tool execution events: %+v", res.Events)
	}
}

func TestSafetyPolicyRedactsLeakedSecretWithoutBlocking(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: toolCallMessage("c1", "echo", `{}`), FinishReason: "tool_calls", Usage: llm.ChatUsage{}},
		{Message: tau.NewTextMessage(tau.RoleAssistant, "done"), FinishReason: "stop", Usage: llm.ChatUsage{}},
	}}
	leaked := "here is sk-abcdefghijklmnopqrstuvwxyz123456"
	loop := New(client, NewRegistry(echoTool{output: leaked}))
	res := loop.Run(context.Background(), "system", nil, "gpt-4o-mini", Config{SafetyMode: SafetyModeRedact})

	var found *SafetyPolicyPayload
	for _, e := range res.Events {
		if e.Type == EventSafetyPolicyApplied {
			found = e.Safety
		}
	}
	if found == nil {
		t.Fatal("expected a SafetyPolicyApplied event")
	}
	if found.Blocked {
		t.Fatal("redact mode must not block")
	}
	if len(found.ReasonCodes) != 1 || found.ReasonCodes[0] != "secret_leak.openai_api_key" {
		t.Fatalf("reason_codes = %v", found.ReasonCodes)
	}
}

func TestSafetyPolicyBlockModeReplacesToolResultAndMarksError(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: toolCallMessage("c1", "echo", `{}`), FinishReason: "tool_calls", Usage: llm.ChatUsage{}},
		{Message: tau.NewTextMessage(tau.RoleAssistant, "done"), FinishReason: "stop", Usage: llm.ChatUsage{}},
	}}
	leaked := "token ghp_" + stringsRepeat("a", 36)
	loop := New(client, NewRegistry(echoTool{output: leaked}))
	res := loop.Run(context.Background(), "system", nil, "gpt-4o-mini", Config{SafetyMode: SafetyModeBlock})

	var toolEnd *ToolExecutionEndPayload
	for _, e := range res.Events {
		if e.Type == EventToolExecutionEnd {
			toolEnd = e.ToolEnd
		}
	}
	if toolEnd == nil || !toolEnd.Result.IsError {
		t.Fatalf("expected blocked tool result to be marked error: %+v", toolEnd)
	}
}

func TestCapabilityPolicyDeniesDisallowedTool(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: toolCallMessage("c1", "echo", `{}`), FinishReason: "tool_calls", Usage: llm.ChatUsage{}},
		{Message: tau.NewTextMessage(tau.RoleAssistant, "done"), FinishReason: "stop", Usage: llm.ChatUsage{}},
	}}
	loop := New(client, NewRegistry(echoTool{output: "ok"}))
	res := loop.Run(context.Background(), "system", nil, "gpt-4o-mini", Config{AllowedCapabilities: []string{"network"}})

	var toolEnd *ToolExecutionEndPayload
	for _, e := range res.Events {
		if e.Type == EventToolExecutionEnd {
			toolEnd = e.ToolEnd
		}
	}
	if toolEnd == nil || !toolEnd.Result.IsError {
		t.Fatalf("expected capability-denied tool call to be an error: %+v", toolEnd)
	}
}

func TestRunCancelledContextStopsLoop(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: tau.NewTextMessage(tau.RoleAssistant, "hi"), FinishReason: "stop", Usage: llm.ChatUsage{}},
	}}
	loop := New(client, NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := loop.Run(ctx, "system", nil, "gpt-4o-mini", Config{})

	if res.FinalPhase != PhaseCancelled {
		t.Fatalf("phase = %v, want cancelled", res.FinalPhase)
	}
}

func TestCostBudgetAlertFiresOnceThresholdCrossed(t *testing.T) {
	client := &scriptedClient{responses: []llm.ChatResponse{
		{Message: tau.NewTextMessage(tau.RoleAssistant, "hi"), FinishReason: "stop", Usage: llm.ChatUsage{Input: 1000, Output: 1000}},
	}}
	budget := 0.01
	loop := New(client, NewRegistry())
	res := loop.Run(context.Background(), "system", nil, "gpt-4o-mini", Config{
		Cost:      CostModel{CostPerInputToken: 0.00001, CostPerOutputToken: 0.00001},
		BudgetUSD: &budget,
	})

	var alerts int
	for _, e := range res.Events {
		if e.Type == EventCostBudgetAlert {
			alerts++
		}
	}
	if alerts == 0 {
		t.Fatal("expected at least one budget alert")
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
