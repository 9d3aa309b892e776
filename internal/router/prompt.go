package router

import (
	"fmt"
	"strings"

	"github.com/tauhq/tau/pkg/tau"
)

// ComposePrompt composes the role-specific prompt: the default role with
// an empty profile returns the base prompt unchanged; otherwise a
// deterministic block is appended.
func (t *Table) ComposePrompt(basePrompt string, phase tau.Phase, role string) string {
	profile, hasProfile := t.Roles[role]
	if role == tau.DefaultRoleName && isEmptyProfile(profile) {
		return basePrompt
	}

	modelHint := profile.Model
	if modelHint == "" {
		modelHint = "default"
	}
	toolPolicy := profile.ToolPolicyPreset
	if toolPolicy == "" {
		toolPolicy = "default"
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "phase: %s\nrole: %s\nmodel_hint: %s\ntool_policy_preset: %s", phase, role, modelHint, toolPolicy)
	if hasProfile && profile.PromptSuffix != "" {
		b.WriteString("\n")
		b.WriteString(profile.PromptSuffix)
	}
	return b.String()
}

func isEmptyProfile(p tau.RoleProfile) bool {
	return p.Model == "" && p.PromptSuffix == "" && p.ToolPolicyPreset == "" && p.TrustWeight == nil && p.MinimumTrustScore == nil
}
