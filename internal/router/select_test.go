package router

import (
	"testing"

	"github.com/tauhq/tau/pkg/tau"
)

func weight(v float64) *float64 { return &v }

// TestRouterTieBreaker verifies that primary(weight=100,score=80) weighs
// 8000 while fallback(weight=160,score=70) weighs 11200, so fallback wins
// with status trust_weighted.
func TestRouterTieBreaker(t *testing.T) {
	table, err := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles: map[string]tau.RoleProfile{
			tau.DefaultRoleName: {},
			"primary":           {TrustWeight: weight(100)},
			"fallback":          {TrustWeight: weight(160)},
		},
		Planner: tau.RouteTarget{PrimaryRole: "primary", FallbackRoles: []string{"fallback"}},
		Delegated: tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:    tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	trust := &TrustInput{RoleScores: map[string]float64{"primary": 80, "fallback": 70}}
	sel := table.SelectRoute(tau.PhasePlanner, "", trust, 1000)

	if sel.Status != StatusTrustWeighted {
		t.Fatalf("status = %v, want %v", sel.Status, StatusTrustWeighted)
	}
	if sel.PrimaryRole() != "fallback" {
		t.Fatalf("primary_role = %q, want fallback", sel.PrimaryRole())
	}
	if *sel.Candidates[0].Weighted != 11200 {
		t.Fatalf("weighted = %v, want 11200", *sel.Candidates[0].Weighted)
	}
}

// TestRouterDeterministicTieBreak verifies that a tie in weighted score is
// broken by the smaller original_index.
func TestRouterDeterministicTieBreak(t *testing.T) {
	table, err := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles: map[string]tau.RoleProfile{
			tau.DefaultRoleName: {},
			"a":                 {},
			"b":                 {},
		},
		Planner:   tau.RouteTarget{PrimaryRole: "a", FallbackRoles: []string{"b"}},
		Delegated: tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:    tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	trust := &TrustInput{RoleScores: map[string]float64{"a": 50, "b": 50}}
	sel := table.SelectRoute(tau.PhasePlanner, "", trust, 1000)
	if sel.PrimaryRole() != "a" {
		t.Fatalf("primary_role = %q, want a (smaller original_index)", sel.PrimaryRole())
	}
}

func TestSelectRouteDisabledWithoutTrustInput(t *testing.T) {
	table, err := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles:         map[string]tau.RoleProfile{tau.DefaultRoleName: {}, "primary": {}},
		Planner:       tau.RouteTarget{PrimaryRole: "primary"},
		Delegated:     tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:        tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sel := table.SelectRoute(tau.PhasePlanner, "", nil, 1000)
	if sel.Status != StatusDisabled || sel.PrimaryRole() != "primary" {
		t.Fatalf("sel = %+v, want disabled/primary", sel)
	}
}

func TestSelectRouteDelegatedCategorySubstringMatch(t *testing.T) {
	table, err := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles: map[string]tau.RoleProfile{
			tau.DefaultRoleName: {}, "reviewer": {}, "coder": {},
		},
		Planner:   tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Delegated: tau.RouteTarget{PrimaryRole: "coder"},
		DelegatedCategories: map[string]tau.RouteTarget{
			"review": {PrimaryRole: "reviewer"},
		},
		Review: tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sel := table.SelectRoute(tau.PhaseDelegatedStep, "please REVIEW this diff", nil, 1000)
	if sel.PrimaryRole() != "reviewer" {
		t.Fatalf("primary_role = %q, want reviewer", sel.PrimaryRole())
	}

	sel2 := table.SelectRoute(tau.PhaseDelegatedStep, "write a function", nil, 1000)
	if sel2.PrimaryRole() != "coder" {
		t.Fatalf("primary_role = %q, want coder (default delegated)", sel2.PrimaryRole())
	}
}

func TestSelectRouteStaleTrustFallback(t *testing.T) {
	table, err := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles: map[string]tau.RoleProfile{
			tau.DefaultRoleName: {}, "primary": {MinimumTrustScore: weight(10)},
		},
		Planner:   tau.RouteTarget{PrimaryRole: "primary"},
		Delegated: tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:    tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	updated := int64(0)
	trust := &TrustInput{RoleScores: map[string]float64{"primary": 90}, UpdatedUnix: &updated, StaleAfterSeconds: 60}
	sel := table.SelectRoute(tau.PhasePlanner, "", trust, 10_000)
	if sel.Status != StatusFallbackStaleTrust {
		t.Fatalf("status = %v, want %v", sel.Status, StatusFallbackStaleTrust)
	}
}

// TestSelectRouteZeroThresholdRejectsMissingScore verifies that an
// explicit minimum_trust_score of 0 still gates out a role with no trust
// score at all: an absent score never satisfies a present threshold, even
// a zero one. Only an absent threshold should admit a scoreless candidate.
func TestSelectRouteZeroThresholdRejectsMissingScore(t *testing.T) {
	table, err := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles: map[string]tau.RoleProfile{
			tau.DefaultRoleName: {}, "primary": {MinimumTrustScore: weight(0)},
		},
		Planner:   tau.RouteTarget{PrimaryRole: "primary"},
		Delegated: tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:    tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	trust := &TrustInput{RoleScores: map[string]float64{}}
	sel := table.SelectRoute(tau.PhasePlanner, "", trust, 1000)
	if sel.Status != StatusFallbackMissingTrust {
		t.Fatalf("status = %v, want %v", sel.Status, StatusFallbackMissingTrust)
	}
	if sel.Candidates[0].MeetsThreshold {
		t.Fatalf("candidate = %+v, want meets_threshold=false for a missing score against a present zero threshold", sel.Candidates[0])
	}
}

func TestComposePromptDefaultRoleEmptyProfileUnchanged(t *testing.T) {
	table, _ := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles:         map[string]tau.RoleProfile{tau.DefaultRoleName: {}},
		Planner:       tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Delegated:     tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:        tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
	})
	got := table.ComposePrompt("base prompt", tau.PhasePlanner, tau.DefaultRoleName)
	if got != "base prompt" {
		t.Fatalf("got %q, want unchanged base prompt", got)
	}
}

func TestComposePromptAppendsDeterministicBlock(t *testing.T) {
	table, _ := Load(tau.MultiAgentRouteTable{
		SchemaVersion: 1,
		Roles: map[string]tau.RoleProfile{
			tau.DefaultRoleName: {}, "reviewer": {Model: "claude-3", ToolPolicyPreset: "readonly", PromptSuffix: "be terse"},
		},
		Planner:   tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Delegated: tau.RouteTarget{PrimaryRole: tau.DefaultRoleName},
		Review:    tau.RouteTarget{PrimaryRole: "reviewer"},
	})
	got := table.ComposePrompt("base prompt", tau.PhaseReview, "reviewer")
	if got == "base prompt" {
		t.Fatal("expected an appended block for a non-default role")
	}
	if !contains(got, "model_hint: claude-3") || !contains(got, "be terse") {
		t.Fatalf("got %q, missing expected fields", got)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
