package agentloop

import "regexp"

// leakRule is one known credential-leak pattern. The rule id is what gets
// reported in MatchedRules; reasonCode is the closed-vocabulary class used
// by telemetry's secret_leak.pattern_class_counts histogram — the two are
// independent since several rule variants (e.g. two GitHub token shapes)
// can map to the same reason class.
type leakRule struct {
	id         string
	reasonCode string
	pattern    *regexp.Regexp
}

var leakRules = []leakRule{
	{"leak.openai_api_key", "secret_leak.openai_api_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"leak.github_classic_pat", "secret_leak.github_token", regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`)},
	{"leak.github_fine_grained_pat", "secret_leak.github_token", regexp.MustCompile(`github_pat_[A-Za-z0-9_]{20,}`)},
	{"leak.aws_access_key_id", "secret_leak.aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"leak.slack_token", "secret_leak.slack_token", regexp.MustCompile(`xox[baprs]-[0-9A-Za-z-]{10,}`)},
	{"leak.generic_bearer_token", "secret_leak.generic_bearer_token", regexp.MustCompile(`[Bb]earer\s+[A-Za-z0-9._-]{20,}`)},
	{"leak.private_key_block", "secret_leak.private_key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
}

const redactionMarker = "[REDACTED]"
const blockedMarker = "[content removed by safety policy]"

// ScanText applies the safety policy to text, returning the policy event
// (always emitted when at least one rule matches) and the text to persist
// in the tool-result message in its place.
func ScanText(stage SafetyStage, mode SafetyMode, text string) (*SafetyPolicyPayload, string) {
	var matched, reasons []string
	redacted := text
	for _, rule := range leakRules {
		if !rule.pattern.MatchString(text) {
			continue
		}
		matched = append(matched, rule.id)
		reasons = append(reasons, rule.reasonCode)
		redacted = rule.pattern.ReplaceAllString(redacted, redactionMarker)
	}
	if len(matched) == 0 {
		return nil, text
	}

	blocked := mode == SafetyModeBlock
	out := redacted
	if blocked {
		out = blockedMarker
	}
	return &SafetyPolicyPayload{
		Stage:        stage,
		Mode:         mode,
		Blocked:      blocked,
		MatchedRules: matched,
		ReasonCodes:  reasons,
	}, out
}
