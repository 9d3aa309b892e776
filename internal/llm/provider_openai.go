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
	"time"

	"github.com/tauhq/tau/pkg/tau"
)

// openAIChatRequest is the wire shape of an OpenAI chat completion request.
type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIChunk struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
}

// OpenAIProvider speaks the OpenAI chat-completions wire format directly
// over net/http rather than through a vendor SDK, so it can attach the
// retry-attempt and request-id headers and drive its own retry/backoff.
type OpenAIProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

func toOpenAIMessages(msgs []tau.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openAIMessage{Role: string(m.Role), Content: m.TextContent()})
	}
	return out
}

func (p *OpenAIProvider) doRequest(req ChatRequest, stream bool, attempt int, requestID string) (*http.Response, error) {
	body := openAIChatRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		Stream:      stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(p.BaseURL, "/")+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
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

// Complete performs a single non-streaming attempt (the caller wraps this
// with RetryingClient.Do for the full retry contract).
func (p *OpenAIProvider) Complete(req ChatRequest) (ChatResponse, error) {
	rc := &RetryingClient{Config: DefaultRetryConfig()}
	return rc.Do(func(attempt int, requestID string) (ChatResponse, error) {
		resp, err := p.doRequest(req, false, attempt, requestID)
		if err != nil {
			return ChatResponse{}, err
		}
		defer resp.Body.Close()
		var parsed struct {
			Choices []openAIChoice `json:"choices"`
			Usage   openAIUsage    `json:"usage"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return ChatResponse{}, fmt.Errorf("llm: openai decode: %w", err)
		}
		text := ""
		finish := ""
		if len(parsed.Choices) > 0 {
			text = parsed.Choices[0].Message.Content
			finish = parsed.Choices[0].FinishReason
		}
		return ChatResponse{
			Message:      tau.NewTextMessage(tau.RoleAssistant, text),
			FinishReason: finish,
			Usage:        ChatUsage{Input: parsed.Usage.PromptTokens, Output: parsed.Usage.CompletionTokens, Total: parsed.Usage.TotalTokens},
		}, nil
	})
}

// CompleteWithStream parses `choices[].delta.content` SSE lines, invoking
// sink synchronously in arrival order.
func (p *OpenAIProvider) CompleteWithStream(req ChatRequest, sink StreamSink) (ChatResponse, error) {
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
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				break
			}
			var chunk openAIChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 {
				if d := chunk.Choices[0].Delta.Content; d != "" {
					text.WriteString(d)
					if sink != nil {
						sink(d)
					}
				}
				if chunk.Choices[0].FinishReason != "" {
					finish = chunk.Choices[0].FinishReason
				}
			}
			if chunk.Usage != nil {
				usage = ChatUsage{Input: chunk.Usage.PromptTokens, Output: chunk.Usage.CompletionTokens, Total: chunk.Usage.TotalTokens}
			}
		}
		if err := sc.Err(); err != nil {
			return ChatResponse{}, fmt.Errorf("llm: openai stream: %w", err)
		}
		return ChatResponse{Message: tau.NewTextMessage(tau.RoleAssistant, text.String()), FinishReason: finish, Usage: usage}, nil
	})
}

func parseRetryAfter(v string) int64 {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return int64(secs) * 1000
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d.Milliseconds()
		}
	}
	return 0
}
