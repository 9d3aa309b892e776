// Package config loads Tau's process configuration: state directories,
// credential and trust-root paths, model routing, and the tunables (lock,
// retry, wasm, tool-builder) that the other core packages accept as plain
// structs. Loading never touches the packages it configures; callers wire
// the decoded Config into constructors themselves.
package config

import (
	"fmt"
	"strings"

	"github.com/tauhq/tau/pkg/tau"
)

// Config is Tau's top-level configuration structure.
type Config struct {
	State       StateConfig       `yaml:"state"`
	Models      ModelsConfig      `yaml:"models"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
	Router      RouterConfig      `yaml:"router"`
	Lock        LockConfig        `yaml:"lock"`
	Retry       RetryConfig       `yaml:"retry"`
	WASM        WASMConfig        `yaml:"wasm"`
	ToolBuilder ToolBuilderConfig `yaml:"tool_builder"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// StateConfig locates the on-disk layout described by the persisted state
// layout: sessions, security, channel-store, credentials, extensions, and
// generated-tools all live under Root unless overridden individually.
type StateConfig struct {
	Root                string `yaml:"root"`
	CredentialStorePath string `yaml:"credential_store_path"`
	TrustRootPath       string `yaml:"trust_root_path"`
	SkillsDir           string `yaml:"skills_dir"`
}

// ModelsConfig is the ordered model-selection list: a primary route plus an
// ordered fallback list, each entry formatted "<provider>/<model>".
type ModelsConfig struct {
	Primary  string   `yaml:"primary"`
	Fallback []string `yaml:"fallback"`
}

// Route splits a "<provider>/<model>" entry into its two parts.
func Route(entry string) (provider, model string, err error) {
	provider, model, ok := strings.Cut(entry, "/")
	if !ok || provider == "" || model == "" {
		return "", "", fmt.Errorf("config: model route %q must be \"<provider>/<model>\"", entry)
	}
	return provider, model, nil
}

// ProviderConfig is one provider's auth mode and endpoint override.
type ProviderConfig struct {
	AuthMethod tau.AuthMethod `yaml:"auth_method"`
	BaseURL    string         `yaml:"base_url,omitempty"`
}

// RouterConfig seeds the multi-agent router's default role selection.
type RouterConfig struct {
	PrimaryRole       string   `yaml:"primary_role"`
	FallbackRoles     []string `yaml:"fallback_roles"`
	MinimumTrustScore float64  `yaml:"minimum_trust_score"`
}

// LockConfig configures the advisory sidecar-lock acquisition used by every
// package that writes shared state (session store, credential store, trust
// roots, channel store).
type LockConfig struct {
	WaitMs  int64 `yaml:"wait_ms"`
	StaleMs int64 `yaml:"stale_ms"`
}

// RetryConfig bounds the LLM client layer's cross-attempt retry budget.
type RetryConfig struct {
	BudgetMs int64 `yaml:"budget_ms"`
}

// WASMConfig sets the sandbox's default fuel/memory/timeout ceiling; a
// generated-tool request may tighten these but never loosen them.
type WASMConfig struct {
	FuelLimit         uint64 `yaml:"fuel_limit"`
	MemoryLimitBytes  uint64 `yaml:"memory_limit_bytes"`
	TimeoutMs         uint64 `yaml:"timeout_ms"`
	ResponseSizeLimit uint64 `yaml:"response_size_limit_bytes"`
}

// ToolBuilderConfig bounds the generated-tool builder's retry-to-compile
// loop.
type ToolBuilderConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// GatewayConfig configures the WebSocket control-plane frame loop.
type GatewayConfig struct {
	ListenAddr          string `yaml:"listen_addr"`
	HeartbeatIntervalMs int64  `yaml:"heartbeat_interval_ms"`
}

// TelemetryConfig locates the JSONL audit/telemetry sinks and the prompt
// cost budget used to compute budget_utilization and budget_alerts.
type TelemetryConfig struct {
	ToolAuditPath      string   `yaml:"tool_audit_path"`
	PromptTelemetryPath string  `yaml:"prompt_telemetry_path"`
	BudgetUSD          *float64 `yaml:"budget_usd"`
}

// ValidationError reports every config problem found by Validate, not just
// the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

// Validate checks cross-field invariants that the wire types themselves
// cannot express (non-empty paths, route syntax, bounded attempt counts).
func (c *Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.State.Root) == "" {
		issues = append(issues, "state.root is required")
	}
	if strings.TrimSpace(c.Models.Primary) == "" {
		issues = append(issues, "models.primary is required")
	} else if _, _, err := Route(c.Models.Primary); err != nil {
		issues = append(issues, err.Error())
	}
	for _, fb := range c.Models.Fallback {
		if _, _, err := Route(fb); err != nil {
			issues = append(issues, err.Error())
		}
	}
	for name, pc := range c.Providers {
		switch pc.AuthMethod {
		case tau.AuthAPIKey, tau.AuthOAuthToken, tau.AuthSessionToken, tau.AuthADC:
		default:
			issues = append(issues, fmt.Sprintf("providers.%s.auth_method %q is not a recognized auth method", name, pc.AuthMethod))
		}
	}
	if c.Lock.WaitMs < 0 {
		issues = append(issues, "lock.wait_ms must be >= 0")
	}
	if c.Lock.StaleMs < 0 {
		issues = append(issues, "lock.stale_ms must be >= 0")
	}
	if c.Retry.BudgetMs < 0 {
		issues = append(issues, "retry.budget_ms must be >= 0")
	}
	if c.WASM.FuelLimit == 0 {
		issues = append(issues, "wasm.fuel_limit must be > 0")
	}
	if c.WASM.MemoryLimitBytes == 0 {
		issues = append(issues, "wasm.memory_limit_bytes must be > 0")
	}
	if c.WASM.TimeoutMs == 0 {
		issues = append(issues, "wasm.timeout_ms must be > 0")
	}
	if c.ToolBuilder.MaxAttempts < 1 || c.ToolBuilder.MaxAttempts > 8 {
		issues = append(issues, "tool_builder.max_attempts must be in 1..=8")
	}
	if c.Telemetry.BudgetUSD != nil && *c.Telemetry.BudgetUSD < 0 {
		issues = append(issues, "telemetry.budget_usd must be >= 0")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// applyDefaults fills every field Load would otherwise leave at its zero
// value with the values the rest of the core already treats as defaults
// (wasmsandbox.Default*, a 5s/60s lock window, an unlimited retry budget).
func applyDefaults(c *Config) {
	if c.State.CredentialStorePath == "" && c.State.Root != "" {
		c.State.CredentialStorePath = c.State.Root + "/credentials.json"
	}
	if c.State.TrustRootPath == "" && c.State.Root != "" {
		c.State.TrustRootPath = c.State.Root + "/security/trust-roots.json"
	}
	if c.State.SkillsDir == "" && c.State.Root != "" {
		c.State.SkillsDir = c.State.Root + "/skills"
	}
	if c.Lock.WaitMs == 0 {
		c.Lock.WaitMs = 5000
	}
	if c.Lock.StaleMs == 0 {
		c.Lock.StaleMs = 60000
	}
	if c.WASM.FuelLimit == 0 {
		c.WASM.FuelLimit = 2_000_000
	}
	if c.WASM.MemoryLimitBytes == 0 {
		c.WASM.MemoryLimitBytes = 32 * 1024 * 1024
	}
	if c.WASM.TimeoutMs == 0 {
		c.WASM.TimeoutMs = 5000
	}
	if c.ToolBuilder.MaxAttempts == 0 {
		c.ToolBuilder.MaxAttempts = 3
	}
	if c.Gateway.HeartbeatIntervalMs == 0 {
		c.Gateway.HeartbeatIntervalMs = 15000
	}
}
