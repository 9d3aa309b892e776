package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tauhq/tau/pkg/tau"
)

const anthropicVersion = "2023-06-01"

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicNonStreamResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type anthropicSSEEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		TextDelta  string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage"`
}

// AnthropicProvider speaks the Anthropic messages wire format directly.
type AnthropicProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

func toAnthropicMessages(msgs []tau.Message) (system string, out []anthropicMessage) {
	for _, m := range msgs {
		if m.Role == tau.RoleSystem {
			system = m.TextContent()
			continue
		}
		out = append(out, anthropicMessage{Role: string(m.Role), Content: m.TextContent()})
	}
	return
}

func (p *AnthropicProvider) doRequest(req ChatRequest, stream bool, attempt int, requestID string) (*http.Response, error) {
	system, msgs := toAnthropicMessages(req.Messages)
	maxTokens := 4096
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	body := anthropicRequest{Model: req.Model, Messages: msgs, System: system, Stream: stream, MaxTokens: maxTokens}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(p.BaseURL, "/")+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("x-tau-request-id", requestID)
	httpReq.Header.Set("x-tau-retry-attempt", strconv.Itoa(attempt))

	resp, err := p.client().Do(httpReq)
	if err != nil {
		return nil, &TransportError{Timeout: true, Err: err}
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, &TransportError{Status: resp.StatusCode, Body: string(b), RetryAfterMs: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return resp, nil
}

func (p *AnthropicProvider) Complete(req ChatRequest) (ChatResponse, error) {
	rc := &RetryingClient{Config: DefaultRetryConfig()}
	return rc.Do(func(attempt int, requestID string) (ChatResponse, error) {
		resp, err := p.doRequest(req, false, attempt, requestID)
		if err != nil {
			return ChatResponse{}, err
		}
		defer resp.Body.Close()
		var parsed anthropicNonStreamResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return ChatResponse{}, fmt.Errorf("llm: anthropic decode: %w", err)
		}
		var text strings.Builder
		for _, c := range parsed.Content {
			text.WriteString(c.Text)
		}
		return ChatResponse{
			Message:      tau.NewTextMessage(tau.RoleAssistant, text.String()),
			FinishReason: parsed.StopReason,
			Usage:        ChatUsage{Input: parsed.Usage.InputTokens, Output: parsed.Usage.OutputTokens, Total: parsed.Usage.InputTokens + parsed.Usage.OutputTokens},
		}, nil
	})
}

// CompleteWithStream parses `content_block_delta.text_delta.text` plus
// `message_delta.usage`/`stop_reason` SSE events.
func (p *AnthropicProvider) CompleteWithStream(req ChatRequest, sink StreamSink) (ChatResponse, error) {
	rc := &RetryingClient{Config: DefaultRetryConfig()}
	return rc.Do(func(attempt int, requestID string) (ChatResponse, error) {
		resp, err := p.doRequest(req, true, attempt, requestID)
		if err != nil {
			return ChatResponse{}, err
		}
		defer resp.Body.Close()

		var text strings.Builder
		finish := ""
		usage := ChatUsage{}
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev anthropicSSEEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.TextDelta != "" {
					text.WriteString(ev.Delta.TextDelta)
					if sink != nil {
						sink(ev.Delta.TextDelta)
					}
				}
			case "message_delta":
				if ev.Delta.StopReason != "" {
					finish = ev.Delta.StopReason
				}
				if ev.Usage != nil {
					usage = ChatUsage{Input: ev.Usage.InputTokens, Output: ev.Usage.OutputTokens, Total: ev.Usage.InputTokens + ev.Usage.OutputTokens}
				}
			}
		}
		if err := sc.Err(); err != nil {
			return ChatResponse{}, fmt.Errorf("llm: anthropic stream: %w", err)
		}
		return ChatResponse{Message: tau.NewTextMessage(tau.RoleAssistant, text.String()), FinishReason: finish, Usage: usage}, nil
	})
}
