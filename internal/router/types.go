// Package router implements the multi-agent route table: trust-weighted
// role selection with threshold gating, stale-trust fallback, and
// deterministic tie-breaking, plus deterministic prompt composition.
package router

import "github.com/tauhq/tau/pkg/tau"

// TrustInput carries the caller's trust signal for one select_route call.
type TrustInput struct {
	// RoleScores takes priority over GlobalScore when present for a role.
	RoleScores  map[string]float64
	GlobalScore *float64
	// MinimumScore overrides each role's MinimumTrustScore when set.
	MinimumScore *float64
	// UpdatedUnix, if set alongside StaleAfterSeconds, ages out all scores
	// when the gap exceeds the staleness window.
	UpdatedUnix      *int64
	StaleAfterSeconds int64
}

// Status is the closed set of select_route outcomes.
type Status string

const (
	StatusDisabled          Status = "disabled"
	StatusThresholdGated    Status = "threshold_gated"
	StatusTrustWeighted     Status = "trust_weighted"
	StatusTrustUnweighted   Status = "trust_unweighted"
	StatusFallbackStaleTrust   Status = "fallback_stale_trust"
	StatusFallbackLowTrust     Status = "fallback_low_trust"
	StatusFallbackMissingTrust Status = "fallback_missing_trust"
)

// Candidate is one ordered, scored role in a select_route result.
type Candidate struct {
	Role          string
	OriginalIndex int
	Score         *float64
	Weighted      *float64
	MeetsThreshold bool
}

// Selection is the full select_route result.
type Selection struct {
	Status     Status
	Candidates []Candidate
}

// PrimaryRole returns the first candidate's role, or "" if there are none.
func (s Selection) PrimaryRole() string {
	if len(s.Candidates) == 0 {
		return ""
	}
	return s.Candidates[0].Role
}

// Table wraps a validated tau.MultiAgentRouteTable.
type Table struct {
	tau.MultiAgentRouteTable
}
