// Package compose turns multi-part goals into ordered execution plans.
//
// The pipeline is DecomposeGoal -> match each subtask to its best skill ->
// OrderSteps (skill dependencies first) -> Optimize (drop repeated skills) ->
// IdentifyParallelSteps -> BuildExecutionPlan. Composition never fails: goals
// that cannot be matched produce missing steps and a low feasibility.
package compose

import (
	"log/slog"
	"sort"

	"github.com/ShayCichocki/skillroute/internal/graph"
	"github.com/ShayCichocki/skillroute/internal/recommend"
	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// DefaultMatchFloor is the minimum score for a subtask to match a skill.
const DefaultMatchFloor = 0.2

// Options controls one composition.
type Options struct {
	// AllowParallel permits parallel phases. When false every step runs in
	// its own sequential phase.
	AllowParallel bool
	// DurationOverrides maps skill names to fixed per-step estimates in seconds.
	DurationOverrides map[string]int
}

// Composer builds execution plans against a registry snapshot.
type Composer struct {
	scorer    *recommend.Scorer
	floor     float64
	durations DurationPolicy
	logger    *slog.Logger
}

// Config configures a Composer.
type Config struct {
	// MatchFloor defaults to DefaultMatchFloor.
	MatchFloor float64
	// Durations defaults to DefaultDurations().
	Durations DurationPolicy
	Logger    *slog.Logger
}

// New creates a Composer.
func New(scorer *recommend.Scorer, cfg Config) *Composer {
	if cfg.MatchFloor <= 0 {
		cfg.MatchFloor = DefaultMatchFloor
	}
	if cfg.Durations == nil {
		cfg.Durations = DefaultDurations()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Composer{
		scorer:    scorer,
		floor:     cfg.MatchFloor,
		durations: cfg.Durations,
		logger:    cfg.Logger,
	}
}

// DecomposeGoal splits goal using the scorer's rule tables.
func (c *Composer) DecomposeGoal(goal string) []models.SubTask {
	return DecomposeGoal(goal, c.scorer.Rules())
}

// MatchSkillsForTask ranks skills for one subtask, dropping those below the
// match floor.
func (c *Composer) MatchSkillsForTask(sub models.SubTask, snap *registry.Snapshot) []models.Recommendation {
	return c.scorer.Search(sub.Text, snap, recommend.Options{MinScore: c.floor})
}

// Compose runs the full pipeline for goal.
func (c *Composer) Compose(goal string, snap *registry.Snapshot, opts Options) *models.ExecutionPlan {
	subs := c.DecomposeGoal(goal)

	drafts := make([]models.Step, 0, len(subs))
	for _, sub := range subs {
		step := models.Step{SubTask: sub, Status: models.StepMissing}
		if matches := c.MatchSkillsForTask(sub, snap); len(matches) > 0 {
			step.SkillName = matches[0].Skill.Name
			step.Score = matches[0].Score
			step.Status = models.StepMatched
		}
		drafts = append(drafts, step)
	}

	g := snap.Graph()
	steps := Optimize(OrderSteps(drafts, g))

	var groups [][]int
	if opts.AllowParallel {
		groups = IdentifyParallelSteps(steps, g)
	} else {
		groups = sequentialGroups(steps)
	}

	plan := c.BuildExecutionPlan(goal, subs, steps, groups, snap, opts)
	c.logger.Debug("goal composed",
		"goal", goal,
		"subtasks", len(subs),
		"steps", len(plan.Steps),
		"phases", len(plan.Phases),
		"feasibility", plan.Feasibility,
	)
	return plan
}

// OrderSteps sorts matched steps so that a step whose skill depends on
// another step's skill comes after it. Ties keep decomposition order, missing
// steps keep their positions, and IDs are assigned 1..n afterwards.
func OrderSteps(steps []models.Step, g *graph.Graph) []models.Step {
	out := append([]models.Step(nil), steps...)

	var slots []int
	var matched []models.Step
	for i, s := range out {
		if s.Matched() {
			slots = append(slots, i)
			matched = append(matched, s)
		}
	}

	// deps[i] lists indexes into matched that step i depends on.
	n := len(matched)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && stepDependsOn(g, matched[i], matched[j]) {
				indegree[i]++
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	done := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			// Only cycles remain; release the earliest pending step.
			for i := 0; i < n; i++ {
				if !done[i] {
					next = i
					break
				}
			}
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}

	for k, idx := range order {
		out[slots[k]] = matched[idx]
	}
	return renumber(out)
}

func stepDependsOn(g *graph.Graph, a, b models.Step) bool {
	if g == nil || a.SkillName == b.SkillName {
		return false
	}
	return g.DependsOn(a.SkillName, b.SkillName)
}

// Optimize drops any matched step whose skill already appeared earlier,
// keeping the first occurrence, and renumbers the result.
func Optimize(steps []models.Step) []models.Step {
	seen := make(map[string]bool)
	out := make([]models.Step, 0, len(steps))
	for _, s := range steps {
		if s.Matched() {
			if seen[s.SkillName] {
				continue
			}
			seen[s.SkillName] = true
		}
		out = append(out, s)
	}
	return renumber(out)
}

func renumber(steps []models.Step) []models.Step {
	for i := range steps {
		steps[i].ID = i + 1
	}
	return steps
}

// IdentifyParallelSteps groups steps by scanning left to right. A matched
// step with a parallel hint joins the earliest group that holds only such
// steps, shares no dependency with it, and comes after every group holding
// one of its dependencies. Every other step opens its own group. The result
// lists every step ID exactly once, groups in order of their first step.
func IdentifyParallelSteps(steps []models.Step, g *graph.Graph) [][]int {
	type group struct {
		ids      []int
		steps    []models.Step
		parallel bool
	}
	var groups []*group

	for _, s := range steps {
		joinable := s.Matched() && s.SubTask.Hint == models.HintParallel
		if joinable {
			after := -1
			for k, grp := range groups {
				for _, m := range grp.steps {
					if stepDependsOn(g, s, m) {
						after = k
					}
				}
			}
			placed := false
			for k := after + 1; k < len(groups); k++ {
				grp := groups[k]
				if !grp.parallel || conflicts(g, s, grp.steps) {
					continue
				}
				grp.ids = append(grp.ids, s.ID)
				grp.steps = append(grp.steps, s)
				placed = true
				break
			}
			if placed {
				continue
			}
		}
		groups = append(groups, &group{ids: []int{s.ID}, steps: []models.Step{s}, parallel: joinable})
	}

	out := make([][]int, len(groups))
	for i, grp := range groups {
		out[i] = grp.ids
	}
	return out
}

func conflicts(g *graph.Graph, s models.Step, members []models.Step) bool {
	for _, m := range members {
		if m.SkillName == s.SkillName || stepDependsOn(g, s, m) || stepDependsOn(g, m, s) {
			return true
		}
	}
	return false
}

func sequentialGroups(steps []models.Step) [][]int {
	out := make([][]int, len(steps))
	for i, s := range steps {
		out[i] = []int{s.ID}
	}
	return out
}

// BuildExecutionPlan renders grouped steps into phases with duration
// estimates and computes feasibility.
func (c *Composer) BuildExecutionPlan(goal string, subs []models.SubTask, steps []models.Step, groups [][]int, snap *registry.Snapshot, opts Options) *models.ExecutionPlan {
	plan := &models.ExecutionPlan{
		Goal:     goal,
		SubTasks: subs,
		Steps:    append([]models.Step(nil), steps...),
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if !step.Matched() {
			plan.MissingCapabilities = append(plan.MissingCapabilities, step.SubTask.Text)
			continue
		}
		if d, ok := opts.DurationOverrides[step.SkillName]; ok {
			step.DurationSeconds = d
		} else if sk, ok := snap.Get(step.SkillName); ok {
			step.DurationSeconds = c.durations.Estimate(sk)
		}
	}

	for _, ids := range groups {
		if len(ids) == 0 {
			continue
		}
		phase := models.Phase{Type: models.PhaseSequential, StepIDs: append([]int(nil), ids...)}
		if len(ids) > 1 && opts.AllowParallel {
			phase.Type = models.PhaseParallel
			plan.ParallelGroups = append(plan.ParallelGroups, phase.StepIDs)
		}
		for _, id := range ids {
			step := plan.Step(id)
			if step == nil {
				continue
			}
			if phase.Type == models.PhaseParallel {
				phase.DurationSeconds = max(phase.DurationSeconds, step.DurationSeconds)
			} else {
				phase.DurationSeconds += step.DurationSeconds
			}
		}
		plan.Phases = append(plan.Phases, phase)
	}

	sort.SliceStable(plan.Phases, func(i, j int) bool {
		return minID(plan.Phases[i].StepIDs) < minID(plan.Phases[j].StepIDs)
	})
	for i := range plan.Phases {
		plan.Phases[i].Index = i + 1
		plan.EstimatedDurationSeconds += plan.Phases[i].DurationSeconds
	}

	if len(plan.Steps) > 0 {
		plan.Feasibility = float64(plan.MatchedSteps()) / float64(len(plan.Steps))
	}
	return plan
}

func minID(ids []int) int {
	m := ids[0]
	for _, id := range ids[1:] {
		m = min(m, id)
	}
	return m
}
