package tau

// Phase is a point in the agent loop at which a route must be selected.
type Phase string

const (
	PhasePlanner        Phase = "planner"
	PhaseDelegatedStep   Phase = "delegated_step"
	PhaseReview          Phase = "review"
)

// RoleProfile configures one named role in a MultiAgentRouteTable.
type RoleProfile struct {
	Model              string  `json:"model,omitempty"`
	PromptSuffix       string  `json:"prompt_suffix,omitempty"`
	ToolPolicyPreset   string  `json:"tool_policy_preset,omitempty"`
	TrustWeight        *float64 `json:"trust_weight,omitempty"`
	MinimumTrustScore  *float64 `json:"minimum_trust_score,omitempty"`
}

// RouteTarget is a primary role plus ordered fallback roles.
type RouteTarget struct {
	PrimaryRole   string   `json:"primary_role"`
	FallbackRoles []string `json:"fallback_roles,omitempty"`
}

// MultiAgentRouteTable is the full routing configuration for one agent.
type MultiAgentRouteTable struct {
	SchemaVersion       int                    `json:"schema_version"`
	Roles               map[string]RoleProfile `json:"roles"`
	Planner             RouteTarget            `json:"planner"`
	Delegated           RouteTarget            `json:"delegated"`
	DelegatedCategories map[string]RouteTarget `json:"delegated_categories,omitempty"`
	Review              RouteTarget            `json:"review"`
}

// DefaultRoleName is used when a role reference is unset.
const DefaultRoleName = "default"
