package models

// RoutingStatus is the outcome of a routing call.
type RoutingStatus string

const (
	// RoutingRouted means assignments were made and capacity was acquired.
	RoutingRouted RoutingStatus = "routed"
	// RoutingNoCapacity means a required role is at its concurrency limit.
	RoutingNoCapacity RoutingStatus = "no-capacity"
	// RoutingNoMatch means no skill was relevant to the task.
	RoutingNoMatch RoutingStatus = "no-match"
)

// RoutingType distinguishes single-skill from multi-step routes.
type RoutingType string

const (
	RoutingSimple  RoutingType = "simple"
	RoutingComplex RoutingType = "complex"
)

// Priority is the attention level suggested for a routed task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Assignment is what the router hands to the caller for dispatch.
type Assignment struct {
	Role      Role   `json:"role"`
	SkillName string `json:"skill_name"`
	Task      string `json:"task"`
	// StepID links the assignment to a plan step; 0 for simple routes.
	StepID int `json:"step_id,omitempty"`
}

// RoutingDecision is the result of routing one task.
type RoutingDecision struct {
	ID              string           `json:"id"`
	Status          RoutingStatus    `json:"status"`
	Type            RoutingType      `json:"type"`
	Priority        Priority         `json:"priority,omitempty"`
	Assignments     []Assignment     `json:"assignments,omitempty"`
	Plan            *ExecutionPlan   `json:"plan,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	// Slots lists one role per capacity slot acquired. The caller must
	// report completion once per slot.
	Slots []Role `json:"slots,omitempty"`
	// Cached is true when the assignments came from the decision cache.
	Cached bool `json:"cached"`
	// Reason explains a non-routed status.
	Reason string `json:"reason,omitempty"`
}

// Routed reports whether capacity was acquired.
func (d *RoutingDecision) Routed() bool {
	return d.Status == RoutingRouted
}
