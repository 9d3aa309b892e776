package llm

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tauhq/tau/pkg/tau"
)

// roundTripFunc lets a test stub out *http.Client without a real listener.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func stubHTTPClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func sseResponse(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     header,
	}
}

// TestStreamReassembly verifies that two OpenAI SSE chunks carrying "Hel"
// then "lo" with a terminal usage object reassemble into text "Hello",
// sink deltas ["Hel","lo"], and usage.total=5.
func TestStreamReassembly(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"Hel"}}]}
data: {"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}
data: [DONE]
`
	provider := &OpenAIProvider{
		BaseURL: "http://fake",
		APIKey:  "k",
		HTTPClient: stubHTTPClient(func(r *http.Request) (*http.Response, error) {
			return sseResponse(200, stream, nil), nil
		}),
	}

	var deltas []string
	resp, err := provider.CompleteWithStream(ChatRequest{Model: "gpt-4o", Messages: []tau.Message{tau.NewTextMessage(tau.RoleUser, "hi")}}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("CompleteWithStream: %v", err)
	}
	if got := strings.Join(deltas, "|"); got != "Hel|lo" {
		t.Fatalf("deltas = %q, want Hel|lo", got)
	}
	if resp.Message.TextContent() != "Hello" {
		t.Fatalf("text = %q, want Hello", resp.Message.TextContent())
	}
	if resp.FinishReason != "stop" {
		t.Fatalf("finish_reason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.Total != 5 {
		t.Fatalf("usage.total = %d, want 5", resp.Usage.Total)
	}
}

// fakeClient is a minimal in-memory Client used to drive FallbackRoutingClient
// and RetryingClient tests without a network round trip.
type fakeClient struct {
	name  string
	calls int
	fn    func(calls int) (ChatResponse, error)
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Complete(req ChatRequest) (ChatResponse, error) {
	f.calls++
	return f.fn(f.calls)
}

func (f *fakeClient) CompleteWithStream(req ChatRequest, sink StreamSink) (ChatResponse, error) {
	return f.Complete(req)
}

// TestFallbackRetryableThenSuccess verifies that when route 0 returns
// 429 and route 1 succeeds, exactly one provider_fallback event is emitted
// with status=429, fallback_index=1.
func TestFallbackRetryableThenSuccess(t *testing.T) {
	routeZero := &fakeClient{name: "openai", fn: func(int) (ChatResponse, error) {
		return ChatResponse{}, &TransportError{Status: 429}
	}}
	routeOne := &fakeClient{name: "anthropic", fn: func(int) (ChatResponse, error) {
		return ChatResponse{Message: tau.NewTextMessage(tau.RoleAssistant, "fallback success")}, nil
	}}

	var events []FallbackEvent
	c := &FallbackRoutingClient{
		Routes: []Route{
			{Provider: "openai", Model: "gpt-4o", Client: routeZero},
			{Provider: "anthropic", Model: "claude", Client: routeOne},
		},
		OnFallback: func(e FallbackEvent) { events = append(events, e) },
	}

	resp, err := c.Complete(ChatRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Message.TextContent() != "fallback success" {
		t.Fatalf("text = %q, want fallback success", resp.Message.TextContent())
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Status != 429 || events[0].FallbackIndex != 1 {
		t.Fatalf("event = %+v, want status=429 fallback_index=1", events[0])
	}
}

// TestNonRetryableStopsImmediately: a non-retryable failure on
// route 0 emits zero events and performs zero attempts on route 1.
func TestNonRetryableStopsImmediately(t *testing.T) {
	routeZero := &fakeClient{name: "openai", fn: func(int) (ChatResponse, error) {
		return ChatResponse{}, &TransportError{Status: 401}
	}}
	routeOne := &fakeClient{name: "anthropic", fn: func(int) (ChatResponse, error) {
		return ChatResponse{Message: tau.NewTextMessage(tau.RoleAssistant, "should not run")}, nil
	}}

	var events []FallbackEvent
	c := &FallbackRoutingClient{
		Routes: []Route{
			{Provider: "openai", Model: "gpt-4o", Client: routeZero},
			{Provider: "anthropic", Model: "claude", Client: routeOne},
		},
		OnFallback: func(e FallbackEvent) { events = append(events, e) },
	}

	_, err := c.Complete(ChatRequest{Model: "gpt-4o"})
	if err == nil {
		t.Fatal("expected error")
	}
	if routeOne.calls != 0 {
		t.Fatalf("route 1 calls = %d, want 0", routeOne.calls)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

// TestRetryBudgetExhaustion verifies that a persistent 429 with a
// retry_budget_ms smaller than the first computed backoff results in
// exactly one outbound attempt.
func TestRetryBudgetExhaustion(t *testing.T) {
	attempts := 0
	rc := &RetryingClient{Config: RetryConfig{
		MaxRetries:    3,
		RetryBudgetMs: 10,
		Backoff:       DefaultBackoffPolicy(),
		Sleep:         func(time.Duration) {},
		Now:           func() int64 { return 0 },
	}}

	_, err := rc.Do(func(attempt int, requestID string) (ChatResponse, error) {
		attempts++
		return ChatResponse{}, &TransportError{Status: 429}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

// TestRetryAfterFloor verifies that a 429 with Retry-After: 1 forces the
// next attempt at least 900ms later even though the default backoff for
// attempt 1 would be ~200ms.
func TestRetryAfterFloor(t *testing.T) {
	var slept []time.Duration
	rc := &RetryingClient{Config: RetryConfig{
		MaxRetries:    3,
		RetryBudgetMs: 0,
		Backoff:       DefaultBackoffPolicy(),
		Sleep:         func(d time.Duration) { slept = append(slept, d) },
		Now:           func() int64 { return 0 },
	}}

	attempts := 0
	_, _ = rc.Do(func(attempt int, requestID string) (ChatResponse, error) {
		attempts++
		if attempts == 1 {
			return ChatResponse{}, &TransportError{Status: 429, RetryAfterMs: 1000}
		}
		return ChatResponse{Message: tau.NewTextMessage(tau.RoleAssistant, "ok")}, nil
	})
	if len(slept) == 0 {
		t.Fatal("expected at least one sleep")
	}
	if slept[0] < 900*time.Millisecond {
		t.Fatalf("first sleep = %v, want >= 900ms", slept[0])
	}
}

func TestAnthropicStreamReassembly(t *testing.T) {
	stream := `data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}
data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}
data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"input_tokens":3,"output_tokens":2}}
`
	provider := &AnthropicProvider{
		BaseURL: "http://fake",
		APIKey:  "k",
		HTTPClient: stubHTTPClient(func(r *http.Request) (*http.Response, error) {
			return sseResponse(200, stream, nil), nil
		}),
	}
	resp, err := provider.CompleteWithStream(ChatRequest{Model: "claude-3", Messages: []tau.Message{tau.NewTextMessage(tau.RoleUser, "hi")}}, nil)
	if err != nil {
		t.Fatalf("CompleteWithStream: %v", err)
	}
	if resp.Message.TextContent() != "Hello" {
		t.Fatalf("text = %q, want Hello", resp.Message.TextContent())
	}
	if resp.FinishReason != "end_turn" {
		t.Fatalf("finish_reason = %q, want end_turn", resp.FinishReason)
	}
	if resp.Usage.Total != 5 {
		t.Fatalf("usage.total = %d, want 5", resp.Usage.Total)
	}
}

func TestGoogleCompleteNonStreaming(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"hi there"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":3,"totalTokenCount":5}}`
	provider := &GoogleProvider{
		BaseURL: "http://fake",
		APIKey:  "k",
		HTTPClient: stubHTTPClient(func(r *http.Request) (*http.Response, error) {
			return sseResponse(200, body, nil), nil
		}),
	}
	resp, err := provider.Complete(ChatRequest{Model: "gemini-pro", Messages: []tau.Message{tau.NewTextMessage(tau.RoleUser, "hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Message.TextContent() != "hi there" {
		t.Fatalf("text = %q, want %q", resp.Message.TextContent(), "hi there")
	}
	if resp.Usage.Total != 5 {
		t.Fatalf("usage.total = %d, want 5", resp.Usage.Total)
	}
}

func TestTransportErrorRetryAfterHeaderParsing(t *testing.T) {
	provider := &OpenAIProvider{
		BaseURL: "http://fake",
		APIKey:  "k",
		HTTPClient: stubHTTPClient(func(r *http.Request) (*http.Response, error) {
			h := http.Header{}
			h.Set("Retry-After", "2")
			return &http.Response{StatusCode: 429, Body: io.NopCloser(bytes.NewReader(nil)), Header: h}, nil
		}),
	}
	_, err := provider.doRequest(ChatRequest{Model: "gpt-4o"}, false, 1, "req-1")
	te, ok := err.(*TransportError)
	if !ok {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if te.RetryAfterMs != 2000 {
		t.Fatalf("RetryAfterMs = %d, want 2000", te.RetryAfterMs)
	}
}
