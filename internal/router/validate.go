package router

import (
	"fmt"
	"sort"

	"github.com/tauhq/tau/pkg/tau"
)

// Load validates a route table's load-time rules: no unknown role
// references, deduped fallbacks, thresholds in [0,100], weights > 0.
func Load(t tau.MultiAgentRouteTable) (*Table, error) {
	if _, ok := t.Roles[tau.DefaultRoleName]; !ok {
		return nil, fmt.Errorf("router: roles must include %q", tau.DefaultRoleName)
	}

	for role, profile := range t.Roles {
		if profile.TrustWeight != nil && *profile.TrustWeight <= 0 {
			return nil, fmt.Errorf("router: role %q trust_weight must be > 0, got %v", role, *profile.TrustWeight)
		}
		if profile.MinimumTrustScore != nil && (*profile.MinimumTrustScore < 0 || *profile.MinimumTrustScore > 100) {
			return nil, fmt.Errorf("router: role %q minimum_trust_score must be in [0,100], got %v", role, *profile.MinimumTrustScore)
		}
	}

	targets := []struct {
		name   string
		target tau.RouteTarget
	}{
		{"planner", t.Planner},
		{"delegated", t.Delegated},
		{"review", t.Review},
	}
	for cat, target := range t.DelegatedCategories {
		targets = append(targets, struct {
			name   string
			target tau.RouteTarget
		}{"delegated_categories[" + cat + "]", target})
	}

	for _, rt := range targets {
		if err := validateTarget(t, rt.name, rt.target); err != nil {
			return nil, err
		}
	}

	return &Table{MultiAgentRouteTable: t}, nil
}

func validateTarget(t tau.MultiAgentRouteTable, name string, target tau.RouteTarget) error {
	if target.PrimaryRole == "" {
		return fmt.Errorf("router: %s primary_role is required", name)
	}
	if _, ok := t.Roles[target.PrimaryRole]; !ok {
		return fmt.Errorf("router: %s references unknown role %q", name, target.PrimaryRole)
	}
	seen := map[string]bool{target.PrimaryRole: true}
	for _, fb := range target.FallbackRoles {
		if _, ok := t.Roles[fb]; !ok {
			return fmt.Errorf("router: %s references unknown fallback role %q", name, fb)
		}
		if seen[fb] {
			return fmt.Errorf("router: %s has duplicate fallback role %q", name, fb)
		}
		seen[fb] = true
	}
	return nil
}

// sortedDelegatedCategoryKeys returns delegated_categories keys in a fixed
// deterministic order so first-substring-match is reproducible across runs.
func (t *Table) sortedDelegatedCategoryKeys() []string {
	keys := make([]string, 0, len(t.DelegatedCategories))
	for k := range t.DelegatedCategories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
