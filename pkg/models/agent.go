package models

import "time"

// Role is a worker category to which routed steps are assigned.
type Role string

const (
	// RoleResearcher searches, retrieves and gathers information.
	RoleResearcher Role = "researcher"
	// RoleAnalyst examines data and finds patterns.
	RoleAnalyst Role = "analyst"
	// RoleWriter produces documents, reports and summaries.
	RoleWriter Role = "writer"
	// RoleBuilder writes and changes code or configuration.
	RoleBuilder Role = "builder"
	// RoleOperator runs, schedules and monitors things.
	RoleOperator Role = "operator"
)

// AllRoles lists the built-in roles in their canonical order.
var AllRoles = []Role{RoleResearcher, RoleAnalyst, RoleWriter, RoleBuilder, RoleOperator}

// Valid returns true if the role is one of the built-in roles.
func (r Role) Valid() bool {
	switch r {
	case RoleResearcher, RoleAnalyst, RoleWriter, RoleBuilder, RoleOperator:
		return true
	default:
		return false
	}
}

// AgentProfile is the static description of a worker role.
type AgentProfile struct {
	// Role is the worker category.
	Role Role `json:"role" mapstructure:"role"`
	// CapabilityKeywords map skills and step text to this role.
	CapabilityKeywords []string `json:"capability_keywords" mapstructure:"keywords"`
	// MaxConcurrent is the number of tasks the role may run at once.
	MaxConcurrent int `json:"max_concurrent" mapstructure:"max_concurrent"`
	// Cost is the relative cost of using this role.
	Cost float64 `json:"cost" mapstructure:"cost"`
	// QualityScore is the relative quality of this role's output.
	QualityScore float64 `json:"quality_score" mapstructure:"quality_score"`
}

// AgentLoadState holds the mutable counters for a role.
type AgentLoadState struct {
	Role        Role          `json:"role"`
	Active      int           `json:"active"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// Available reports whether another task can be started for the role.
func (s AgentLoadState) Available(maxConcurrent int) bool {
	return s.Active < maxConcurrent
}
