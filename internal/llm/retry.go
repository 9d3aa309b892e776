package llm

import (
	"time"

	"github.com/google/uuid"
)

// RetryConfig bounds a RetryingClient's per-request retry behavior.
type RetryConfig struct {
	MaxRetries   int // attempts <= MaxRetries + 1
	RetryBudgetMs int64 // 0 disables the budget
	Backoff      BackoffPolicy
	// Sleep is overridable for deterministic tests.
	Sleep func(d time.Duration)
	// Now is overridable for deterministic tests; returns unix millis.
	Now func() int64
}

// DefaultRetryConfig returns the out-of-the-box retry budget: three
// retries, exponential backoff, no overall time budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		RetryBudgetMs: 0,
		Backoff:       DefaultBackoffPolicy(),
		Sleep:         time.Sleep,
		Now:           func() int64 { return time.Now().UnixMilli() },
	}
}

// AttemptFunc performs one provider call. attempt is 1-indexed; requestID
// is stable across all attempts of one logical request. Implementations
// attach the `x-tau-retry-attempt` and `x-tau-request-id` headers
// themselves using these two values.
type AttemptFunc func(attempt int, requestID string) (ChatResponse, error)

// RetryingClient wraps a single provider's AttemptFunc with a uniform
// retry contract: retryable-error classification, exponential backoff with
// jitter, a Retry-After floor, a total wall-time budget, and an attempt cap
// of MaxRetries+1.
type RetryingClient struct {
	Config RetryConfig
}

// Do runs attempt with the configured retry contract.
func (c *RetryingClient) Do(attempt AttemptFunc) (ChatResponse, error) {
	cfg := c.Config
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}

	requestID := uuid.NewString()
	start := cfg.Now()
	maxAttempts := cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		resp, err := attempt(n, requestID)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return ChatResponse{}, err
		}
		if n == maxAttempts {
			break
		}

		if cfg.RetryBudgetMs > 0 && cfg.Now()-start >= cfg.RetryBudgetMs {
			break
		}

		delayMs := cfg.Backoff.ComputeBackoffMs(n)
		if te, ok := err.(*TransportError); ok && te.RetryAfterMs > delayMs {
			delayMs = te.RetryAfterMs
		}

		if cfg.RetryBudgetMs > 0 {
			remaining := cfg.RetryBudgetMs - (cfg.Now() - start)
			if remaining <= 0 {
				break
			}
			if delayMs > remaining {
				// Sleeping past the budget would perform zero further
				// attempts anyway; still honor Retry-After precisely by
				// sleeping the minimum of the two only if it keeps at
				// least one more attempt possible, otherwise stop now.
				break
			}
		}

		cfg.Sleep(time.Duration(delayMs) * time.Millisecond)
	}
	return ChatResponse{}, lastErr
}
