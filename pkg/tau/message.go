// Package tau holds the data model shared across the agent execution
// subsystem: messages, session lineage, channel refs, signed envelopes,
// credentials, generated-tool artifacts, and the multi-agent route table.
package tau

import "strings"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind identifies the kind of a ContentPart.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// ContentPart is one ordered element of a Message's content.
//
// Exactly one of Text, ToolCall, ToolResult is populated, selected by Kind.
type ContentPart struct {
	Kind       PartKind    `json:"kind"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object text
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	IsError    bool   `json:"is_error"`
}

// Message is one turn in a conversation: a role plus ordered content parts.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// NewTextMessage builds a single-part text Message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentPart{{Kind: PartText, Text: text}}}
}

// TextContent concatenates all text parts in order, space-joined with no
// separator beyond what the parts themselves contain.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns every tool-call part's ToolCall, in order.
func (m Message) ToolCalls() []ToolCall {
	var out []ToolCall
	for _, p := range m.Content {
		if p.Kind == PartToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

// ToolResults returns every tool-result part's ToolResult, in order.
func (m Message) ToolResults() []ToolResult {
	var out []ToolResult
	for _, p := range m.Content {
		if p.Kind == PartToolResult && p.ToolResult != nil {
			out = append(out, *p.ToolResult)
		}
	}
	return out
}
