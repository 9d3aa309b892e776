package llm

import (
	"math"
	"math/rand"
)

// BackoffPolicy mirrors the exponential-with-jitter formula used
// throughout the retry contract: base = initialMs * factor^(attempt-1),
// jitter = base * jitter * random(), total = min(maxMs, base + jitter).
type BackoffPolicy struct {
	InitialMs float64
	MaxMs     float64
	Factor    float64
	Jitter    float64
}

// DefaultBackoffPolicy is used when a caller does not override it.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{InitialMs: 200, MaxMs: 20000, Factor: 2, Jitter: 0.1}
}

// ComputeBackoffMs calculates the backoff for a given attempt (1-indexed).
func (p BackoffPolicy) ComputeBackoffMs(attempt int) int64 {
	return p.computeWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter only
}

func (p BackoffPolicy) computeWithRand(attempt int, r float64) int64 {
	exp := math.Max(float64(attempt-1), 0)
	base := p.InitialMs * math.Pow(p.Factor, exp)
	jitterAmount := base * p.Jitter * r
	total := math.Min(p.MaxMs, base+jitterAmount)
	return int64(math.Round(total))
}
