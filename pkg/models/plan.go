package models

// SubTaskHint records how a decomposition rule wants a subtask scheduled.
type SubTaskHint string

const (
	// HintSingle marks a goal that was not split.
	HintSingle SubTaskHint = "single"
	// HintParallel marks a part of a conjunction ("A and B").
	HintParallel SubTaskHint = "parallel"
	// HintSequential marks an ordered part ("A then B", list items).
	HintSequential SubTaskHint = "sequential"
)

// SubTask is one part of a decomposed goal.
type SubTask struct {
	// Index is the 0-based position in the decomposition.
	Index int         `json:"index"`
	Text  string      `json:"text"`
	Hint  SubTaskHint `json:"hint"`
}

// StepStatus is whether a step resolved to a skill.
type StepStatus string

const (
	StepMatched StepStatus = "matched"
	StepMissing StepStatus = "missing"
)

// Step is a subtask paired with the skill chosen to perform it.
type Step struct {
	// ID is the 1-based position of the step in the final ordering.
	ID              int        `json:"id"`
	SubTask         SubTask    `json:"sub_task"`
	SkillName       string     `json:"skill_name,omitempty"`
	Score           float64    `json:"score,omitempty"`
	Status          StepStatus `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
}

// Matched reports whether the step resolved to a skill.
func (s Step) Matched() bool {
	return s.Status == StepMatched
}

// PhaseType describes how the steps in a phase run.
type PhaseType string

const (
	PhaseParallel   PhaseType = "parallel"
	PhaseSequential PhaseType = "sequential"
)

// Phase is a group of steps sharing the same parallel/sequential treatment.
type Phase struct {
	Index           int       `json:"index"`
	Type            PhaseType `json:"type"`
	StepIDs         []int     `json:"step_ids"`
	DurationSeconds int       `json:"duration_seconds"`
}

// ExecutionPlan is the result of composing a goal into skill steps.
type ExecutionPlan struct {
	Goal                     string    `json:"goal"`
	SubTasks                 []SubTask `json:"sub_tasks"`
	Steps                    []Step    `json:"steps"`
	ParallelGroups           [][]int   `json:"parallel_groups,omitempty"`
	Phases                   []Phase   `json:"phases"`
	Feasibility              float64   `json:"feasibility"`
	EstimatedDurationSeconds int       `json:"estimated_duration_seconds"`
	MissingCapabilities      []string  `json:"missing_capabilities,omitempty"`
}

// Step returns the step with the given ID, or nil.
func (p *ExecutionPlan) Step(id int) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// MatchedSteps returns the number of steps that resolved to a skill.
func (p *ExecutionPlan) MatchedSteps() int {
	n := 0
	for _, s := range p.Steps {
		if s.Matched() {
			n++
		}
	}
	return n
}
