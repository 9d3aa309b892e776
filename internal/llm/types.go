// Package llm implements the provider-neutral LLM client layer: request/
// response types, per-attempt retry with budget and Retry-After honoring,
// SSE streaming reassembly, and cross-provider fallback routing.
package llm

import "github.com/tauhq/tau/pkg/tau"

// ChatRequest is the provider-neutral chat completion request.
type ChatRequest struct {
	Model       string             `json:"model"`
	Messages    []tau.Message      `json:"messages"`
	Tools       []tau.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string             `json:"tool_choice,omitempty"`
	JSONMode    bool               `json:"json_mode,omitempty"`
	MaxTokens   *int               `json:"max_tokens,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

// ChatUsage reports token usage for one completion.
type ChatUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// ChatResponse is the provider-neutral chat completion response.
type ChatResponse struct {
	Message      tau.Message `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        ChatUsage   `json:"usage"`
}

// StreamSink receives text deltas as they arrive, synchronously, in
// protocol order.
type StreamSink func(delta string)

// Client is the small provider-neutral interface every provider and the
// fallback/retry wrappers implement.
type Client interface {
	Complete(req ChatRequest) (ChatResponse, error)
	CompleteWithStream(req ChatRequest, sink StreamSink) (ChatResponse, error)
	Name() string
}
