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

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleGenerateRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type googleCandidate struct {
	Content      googleContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type googleGenerateResponse struct {
	Candidates    []googleCandidate    `json:"candidates"`
	UsageMetadata googleUsageMetadata `json:"usageMetadata"`
}

// GoogleProvider speaks the Gemini generateContent/streamGenerateContent
// wire format directly.
type GoogleProvider struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

func toGoogleRole(r tau.Role) string {
	if r == tau.RoleAssistant {
		return "model"
	}
	return "user"
}

func toGoogleContents(msgs []tau.Message) []googleContent {
	out := make([]googleContent, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == tau.RoleSystem {
			continue
		}
		out = append(out, googleContent{Role: toGoogleRole(m.Role), Parts: []googlePart{{Text: m.TextContent()}}})
	}
	return out
}

func (p *GoogleProvider) doRequest(req ChatRequest, stream bool, attempt int, requestID string) (*http.Response, error) {
	body := googleGenerateRequest{Contents: toGoogleContents(req.Messages)}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	method := "generateContent"
	if stream {
		method = "streamGenerateContent"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:%s?key=%s", strings.TrimRight(p.BaseURL, "/"), req.Model, method, p.APIKey)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
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

func (p *GoogleProvider) Complete(req ChatRequest) (ChatResponse, error) {
	rc := &RetryingClient{Config: DefaultRetryConfig()}
	return rc.Do(func(attempt int, requestID string) (ChatResponse, error) {
		resp, err := p.doRequest(req, false, attempt, requestID)
		if err != nil {
			return ChatResponse{}, err
		}
		defer resp.Body.Close()
		var parsed googleGenerateResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return ChatResponse{}, fmt.Errorf("llm: google decode: %w", err)
		}
		text, finish := extractGoogleCandidate(parsed.Candidates)
		u := parsed.UsageMetadata
		return ChatResponse{
			Message:      tau.NewTextMessage(tau.RoleAssistant, text),
			FinishReason: finish,
			Usage:        ChatUsage{Input: u.PromptTokenCount, Output: u.CandidatesTokenCount, Total: u.TotalTokenCount},
		}, nil
	})
}

func extractGoogleCandidate(cands []googleCandidate) (text, finish string) {
	if len(cands) == 0 {
		return "", ""
	}
	var b strings.Builder
	for _, part := range cands[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), cands[0].FinishReason
}

// CompleteWithStream parses the streamed JSON-array-of-objects response
// Gemini emits (one candidate object per SSE "data: " line in the REST
// streaming mode), following `candidates[].content.parts[].text`.
func (p *GoogleProvider) CompleteWithStream(req ChatRequest, sink StreamSink) (ChatResponse, error) {
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
			line := strings.TrimSpace(sc.Text())
			line = strings.TrimPrefix(line, "data: ")
			line = strings.TrimSuffix(strings.TrimPrefix(line, ","), ",")
			if line == "" || line == "[" || line == "]" {
				continue
			}
			var chunk googleGenerateResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			delta, f := extractGoogleCandidate(chunk.Candidates)
			if delta != "" {
				text.WriteString(delta)
				if sink != nil {
					sink(delta)
				}
			}
			if f != "" {
				finish = f
			}
			if chunk.UsageMetadata.TotalTokenCount > 0 {
				u := chunk.UsageMetadata
				usage = ChatUsage{Input: u.PromptTokenCount, Output: u.CandidatesTokenCount, Total: u.TotalTokenCount}
			}
		}
		if err := sc.Err(); err != nil {
			return ChatResponse{}, fmt.Errorf("llm: google stream: %w", err)
		}
		return ChatResponse{Message: tau.NewTextMessage(tau.RoleAssistant, text.String()), FinishReason: finish, Usage: usage}, nil
	})
}
