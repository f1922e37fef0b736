// Package orgkernel implements the Organization Kernel (spec §4.2):
// role selection by domain, PACE failure-tier evaluation, and SALUTE
// status emission.
package orgkernel

// RoleType ranks how a role is preferred during selection when more
// than one role's capabilities.domains matches (spec §4.2: "prefer
// specialist over executive over commander").
type RoleType string

const (
	RoleCommander RoleType = "commander"
	RoleExecutive RoleType = "executive"
	RoleSpecialist RoleType = "specialist"
)

// roleTypeRank returns the tie-break preference order, lower is
// preferred.
func roleTypeRank(t RoleType) int {
	switch t {
	case RoleSpecialist:
		return 0
	case RoleExecutive:
		return 1
	case RoleCommander:
		return 2
	default:
		return 3
	}
}

// Capabilities scopes a role's allowed domains/workflows/tools.
type Capabilities struct {
	Domains       []string `json:"domains"`
	Workflows     []string `json:"workflows"`
	ToolsPrimary  []string `json:"tools_primary"`
	ToolsSecondary []string `json:"tools_secondary"`
}

// PaceTier is one of a role's four failure-response tiers. Trigger is
// evaluated in Go against AgentState (see pace.go) rather than as a
// Mangle query string — see DESIGN.md's internal/rules entry for why
// numeric-threshold comparisons stay out of the Datalog schema.
type PaceTier struct {
	Metric     string  `json:"metric"`     // tool_failures_consecutive | turns_since_progress | context_fill_pct | unrecoverable_error
	Tool       string  `json:"tool,omitempty"`
	Operator   string  `json:"operator"`   // ">=" | ">" | "=="
	Threshold  float64 `json:"threshold"`
	Action     string  `json:"action"`
	EscalateTo string  `json:"escalate_to"`
}

// PacePlan holds a role's four ordered tiers.
type PacePlan struct {
	Primary    PaceTier `json:"primary"`
	Alternate  PaceTier `json:"alternate"`
	Contingent PaceTier `json:"contingent"`
	Emergency  PaceTier `json:"emergency"`
}

// Doctrine configures a role's operating cadence.
type Doctrine struct {
	SALUTEIntervalTurns     int `json:"salute_interval_turns"`
	MaxTurnsWithoutProgress int `json:"max_turns_without_progress"`
	AutonomousRetryLimit    int `json:"autonomous_retry_limit"`
}

// Role is a capability profile plus chain-of-command and failure
// doctrine (spec §3).
type Role struct {
	RoleID         string                 `json:"role_id"`
	RoleType       RoleType               `json:"role_type"`
	AuthorityLevel int                    `json:"authority_level"`
	ReportsTo      string                 `json:"reports_to"`
	CanDelegate    bool                   `json:"can_delegate"`
	Capabilities   Capabilities           `json:"capabilities"`
	Requirements   map[string]interface{} `json:"requirements"`
	PacePlan       PacePlan               `json:"pace_plan"`
	Doctrine       Doctrine               `json:"doctrine"`
}

// Organization is a directed hierarchy of roles with a mission
// (spec §3). Exactly one organization is active at a time.
type Organization struct {
	OrgID                 string              `json:"org_id"`
	Mission               string              `json:"mission"`
	Hierarchy             map[string][]string `json:"hierarchy"` // role_id -> subordinates
	CommunicationChannels []string            `json:"communication_channels"`
	Mode                  string              `json:"mode"` // microcosm | macrocosm
}

// activeSentinel is the on-disk organizations/active.json record.
type activeSentinel struct {
	OrgID string `json:"org_id"`
}
