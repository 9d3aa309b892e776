package router

import (
	"sort"
	"strings"

	"github.com/tauhq/tau/pkg/tau"
)

type scoredCandidate struct {
	role           string
	originalIndex  int
	score          float64
	hasScore       bool
	weighted       float64
	meetsThreshold bool
}

// SelectRoute picks a target role for phase and stepText, weighing trust
// scores against each candidate's configured threshold and weight.
func (t *Table) SelectRoute(phase tau.Phase, stepText string, trust *TrustInput, nowUnix int64) Selection {
	target := t.resolveTarget(phase, stepText)
	order := append([]string{target.PrimaryRole}, target.FallbackRoles...)

	if trust == nil {
		return Selection{Status: StatusDisabled, Candidates: unscored(order)}
	}

	stale := trust.UpdatedUnix != nil && nowUnix-*trust.UpdatedUnix > trust.StaleAfterSeconds*1000

	candidates := make([]scoredCandidate, len(order))
	anyHasScore := false
	for i, role := range order {
		score, hasScore := 0.0, false
		if !stale {
			if v, ok := trust.RoleScores[role]; ok {
				score, hasScore = v, true
			} else if trust.GlobalScore != nil {
				score, hasScore = *trust.GlobalScore, true
			}
		}
		if hasScore {
			anyHasScore = true
		}

		weight := 100.0
		if prof, ok := t.Roles[role]; ok && prof.TrustWeight != nil {
			weight = *prof.TrustWeight
		}

		var threshold *float64
		if trust.MinimumScore != nil {
			threshold = trust.MinimumScore
		} else if prof, ok := t.Roles[role]; ok && prof.MinimumTrustScore != nil {
			threshold = prof.MinimumTrustScore
		}

		// A present threshold (even zero) requires an actual score to
		// meet it; only an absent threshold passes a scoreless candidate.
		meetsThreshold := true
		if threshold != nil {
			meetsThreshold = hasScore && score >= *threshold
		}

		candidates[i] = scoredCandidate{
			role:           role,
			originalIndex:  i,
			score:          score,
			hasScore:       hasScore,
			weighted:       score * weight,
			meetsThreshold: meetsThreshold,
		}
	}

	anyMeets := false
	for _, c := range candidates {
		if c.meetsThreshold {
			anyMeets = true
			break
		}
	}

	if !anyMeets {
		status := StatusFallbackMissingTrust
		switch {
		case stale:
			status = StatusFallbackStaleTrust
		case anyHasScore:
			status = StatusFallbackLowTrust
		}
		return Selection{Status: status, Candidates: toCandidates(candidates)}
	}

	var eligible, ineligible []scoredCandidate
	for _, c := range candidates {
		if c.meetsThreshold {
			eligible = append(eligible, c)
		} else {
			ineligible = append(ineligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].weighted != eligible[j].weighted {
			return eligible[i].weighted > eligible[j].weighted
		}
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		return eligible[i].originalIndex < eligible[j].originalIndex
	})

	status := StatusTrustWeighted
	if len(ineligible) > 0 {
		status = StatusThresholdGated
	} else if !anyHasScore {
		status = StatusTrustUnweighted
	}

	ordered := append(eligible, ineligible...)
	return Selection{Status: status, Candidates: toCandidates(ordered)}
}

func (t *Table) resolveTarget(phase tau.Phase, stepText string) tau.RouteTarget {
	switch phase {
	case tau.PhasePlanner:
		return t.Planner
	case tau.PhaseReview:
		return t.Review
	case tau.PhaseDelegatedStep:
		lower := strings.ToLower(stepText)
		for _, key := range t.sortedDelegatedCategoryKeys() {
			if strings.Contains(lower, strings.ToLower(key)) {
				return t.DelegatedCategories[key]
			}
		}
		return t.Delegated
	default:
		return t.Delegated
	}
}

func unscored(order []string) []Candidate {
	out := make([]Candidate, len(order))
	for i, role := range order {
		out[i] = Candidate{Role: role, OriginalIndex: i, MeetsThreshold: true}
	}
	return out
}

func toCandidates(in []scoredCandidate) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = Candidate{Role: c.role, OriginalIndex: c.originalIndex, MeetsThreshold: c.meetsThreshold}
		if c.hasScore {
			score := c.score
			weighted := c.weighted
			out[i].Score = &score
			out[i].Weighted = &weighted
		}
	}
	return out
}
