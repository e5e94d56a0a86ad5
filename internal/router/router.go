// Package router assigns tasks to worker roles under per-role concurrency
// limits.
//
// Route never blocks or queues: when a required role is at capacity the
// decision comes back with status no-capacity and nothing is reserved.
// Every routed decision reserves one slot per distinct role in
// RoutingDecision.Slots, and the caller must release each slot exactly once
// with ReportCompletion. An unreported slot stays reserved.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ShayCichocki/skillroute/internal/compose"
	"github.com/ShayCichocki/skillroute/internal/recommend"
	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// ErrUnknownRole indicates a role with no registered profile.
var ErrUnknownRole = errors.New("unknown role")

const (
	// DefaultCacheTTL is how long a routing plan is reused.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheSize bounds the number of cached routing plans.
	DefaultCacheSize = 256
	// DefaultRecommendLimit is how many recommendations a decision carries.
	DefaultRecommendLimit = 5
)

// Options controls one routing call.
type Options struct {
	// Decompose allows complex routing through the composer.
	Decompose bool
	// AllowParallel is passed to the composer for complex routes.
	AllowParallel bool
	// PreferredRole overrides the keyword mapping when it names a known role.
	PreferredRole models.Role
	// MaxAgents caps the number of distinct roles. Zero means no cap.
	MaxAgents int
}

// canonical renders options in a fixed order for cache keys.
func (o Options) canonical() string {
	return "decompose=" + strconv.FormatBool(o.Decompose) +
		";parallel=" + strconv.FormatBool(o.AllowParallel) +
		";role=" + string(o.PreferredRole) +
		";max=" + strconv.Itoa(o.MaxAgents)
}

// SnapshotSource provides the current registry snapshot.
type SnapshotSource interface {
	Current() (*registry.Snapshot, error)
}

// Config configures a Router.
type Config struct {
	// Profiles defaults to DefaultProfiles(). Order decides keyword precedence.
	Profiles []models.AgentProfile
	// DefaultRole defaults to DefaultRole.
	DefaultRole models.Role
	// CacheTTL defaults to DefaultCacheTTL.
	CacheTTL time.Duration
	// CacheSize defaults to DefaultCacheSize.
	CacheSize int
	// MatchFloor is the minimum recommendation score. Defaults to compose.DefaultMatchFloor.
	MatchFloor float64
	// RecommendLimit defaults to DefaultRecommendLimit.
	RecommendLimit int
	Logger         *slog.Logger
}

// cachedRoute is the reusable part of a routing decision. version is the
// registry snapshot it was planned against.
type cachedRoute struct {
	version         uint64
	typ             models.RoutingType
	priority        models.Priority
	assignments     []models.Assignment
	plan            *models.ExecutionPlan
	recommendations []models.Recommendation
}

// Router maps tasks onto roles and tracks per-role load.
type Router struct {
	source   SnapshotSource
	scorer   *recommend.Scorer
	composer *compose.Composer
	cfg      Config
	roles    classifier
	profiles map[models.Role]models.AgentProfile

	// mu protects load.
	mu   sync.Mutex
	load map[models.Role]*models.AgentLoadState

	cache  *expirable.LRU[uint64, cachedRoute]
	logger *slog.Logger
}

// New creates a Router.
func New(source SnapshotSource, scorer *recommend.Scorer, composer *compose.Composer, cfg Config) *Router {
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles()
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = DefaultRole
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.MatchFloor <= 0 {
		cfg.MatchFloor = compose.DefaultMatchFloor
	}
	if cfg.RecommendLimit <= 0 {
		cfg.RecommendLimit = DefaultRecommendLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	r := &Router{
		source:   source,
		scorer:   scorer,
		composer: composer,
		cfg:      cfg,
		roles:    classifier{profiles: cfg.Profiles, defaultRole: cfg.DefaultRole},
		profiles: make(map[models.Role]models.AgentProfile, len(cfg.Profiles)),
		load:     make(map[models.Role]*models.AgentLoadState, len(cfg.Profiles)),
		cache:    expirable.NewLRU[uint64, cachedRoute](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   cfg.Logger,
	}
	for _, p := range cfg.Profiles {
		r.profiles[p.Role] = p
		r.load[p.Role] = &models.AgentLoadState{Role: p.Role}
	}
	if _, ok := r.profiles[cfg.DefaultRole]; !ok {
		p := models.AgentProfile{Role: cfg.DefaultRole, MaxConcurrent: 1}
		r.cfg.Profiles = append(r.cfg.Profiles, p)
		r.profiles[p.Role] = p
		r.load[p.Role] = &models.AgentLoadState{Role: p.Role}
	}
	return r
}

// Route produces a routing decision for task. The only errors are a
// cancelled context and registry.ErrNotLoaded; no-match and no-capacity are
// reported through the decision status.
func (r *Router) Route(ctx context.Context, task string, opts Options) (*models.RoutingDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := r.source.Current()
	if err != nil {
		return nil, err
	}

	key := cacheKey(task, opts)
	route, cached := r.cache.Get(key)
	if cached && route.version != snap.Version() {
		// Planned against a snapshot that has since been replaced.
		r.cache.Remove(key)
		cached = false
	}
	if !cached {
		var ok bool
		route, ok = r.plan(task, snap, opts)
		if !ok {
			r.logger.Debug("no skill matched task", "task", task)
			return &models.RoutingDecision{
				ID:     uuid.NewString(),
				Status: models.RoutingNoMatch,
				Reason: "no skill matched the task",
			}, nil
		}
	}

	decision := &models.RoutingDecision{
		ID:              uuid.NewString(),
		Type:            route.typ,
		Priority:        route.priority,
		Assignments:     append([]models.Assignment(nil), route.assignments...),
		Plan:            route.plan,
		Recommendations: append([]models.Recommendation(nil), route.recommendations...),
		Cached:          cached,
	}

	slots := distinctRoles(decision.Assignments)
	if blocked, reason := r.acquire(slots); blocked {
		decision.Status = models.RoutingNoCapacity
		decision.Reason = reason
		r.logger.Debug("routing blocked", "task", task, "reason", reason)
		return decision, nil
	}

	if !cached {
		r.cache.Add(key, route)
	}
	decision.Status = models.RoutingRouted
	decision.Slots = slots
	r.logger.Debug("task routed",
		"task", task,
		"type", decision.Type,
		"priority", decision.Priority,
		"roles", slots,
		"cached", cached,
	)
	return decision, nil
}

// plan computes the cacheable part of a decision. ok is false when no skill
// is relevant.
func (r *Router) plan(task string, snap *registry.Snapshot, opts Options) (cachedRoute, bool) {
	recs := r.scorer.Recommend(task, snap, recommend.Options{
		Limit:    r.cfg.RecommendLimit,
		MinScore: r.cfg.MatchFloor,
	})
	if len(recs) == 0 {
		return cachedRoute{}, false
	}

	route := cachedRoute{version: snap.Version(), recommendations: recs}
	if opts.Decompose && len(recs) > 1 && r.composer != nil {
		plan := r.composer.Compose(task, snap, compose.Options{AllowParallel: opts.AllowParallel})
		if plan.MatchedSteps() > 0 {
			route.typ = models.RoutingComplex
			route.plan = plan
			route.priority = complexPriority(plan)
			for _, step := range plan.Steps {
				if !step.Matched() {
					continue
				}
				sk, _ := snap.Get(step.SkillName)
				route.assignments = append(route.assignments, models.Assignment{
					Role:      r.roles.Classify(sk, step.SubTask.Text).Role,
					SkillName: step.SkillName,
					Task:      step.SubTask.Text,
					StepID:    step.ID,
				})
			}
		}
	}

	if route.typ == "" {
		best := recs[0]
		route.typ = models.RoutingSimple
		route.priority = simplePriority(best.Score)
		route.assignments = []models.Assignment{{
			Role:      r.roles.Classify(best.Skill, task).Role,
			SkillName: best.Skill.Name,
			Task:      task,
		}}
	}

	if _, known := r.profiles[opts.PreferredRole]; known {
		for i := range route.assignments {
			route.assignments[i].Role = opts.PreferredRole
		}
	}
	if opts.MaxAgents > 0 {
		foldRoles(route.assignments, opts.MaxAgents)
	}
	return route, true
}

// acquire reserves one slot per role, all or nothing.
func (r *Router) acquire(roles []models.Role) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range roles {
		st := r.load[role]
		p := r.profiles[role]
		if st == nil || !st.Available(p.MaxConcurrent) {
			active := 0
			if st != nil {
				active = st.Active
			}
			return true, fmt.Sprintf("role %s at capacity (%d/%d)", role, active, p.MaxConcurrent)
		}
	}
	for _, role := range roles {
		r.load[role].Active++
	}
	return false, ""
}

// ReportCompletion releases one slot of role and records the outcome.
func (r *Router) ReportCompletion(role models.Role, duration time.Duration, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.load[role]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if st.Active > 0 {
		st.Active--
	}
	if success {
		st.Completed++
	} else {
		st.Failed++
	}
	n := st.Completed + st.Failed
	st.AvgDuration += (duration - st.AvgDuration) / time.Duration(n)
	return nil
}

// LoadState returns a copy of every role's load, in profile order.
func (r *Router) LoadState() []models.AgentLoadState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AgentLoadState, 0, len(r.cfg.Profiles))
	for _, p := range r.cfg.Profiles {
		out = append(out, *r.load[p.Role])
	}
	return out
}

// Profiles returns the configured role profiles in precedence order.
func (r *Router) Profiles() []models.AgentProfile {
	return append([]models.AgentProfile(nil), r.cfg.Profiles...)
}

// ClearCache drops every cached routing plan.
func (r *Router) ClearCache() {
	r.cache.Purge()
}

// CacheLen returns the number of cached routing plans.
func (r *Router) CacheLen() int {
	return r.cache.Len()
}

func cacheKey(task string, opts Options) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(task)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(opts.canonical())
	return d.Sum64()
}

func distinctRoles(assignments []models.Assignment) []models.Role {
	seen := make(map[models.Role]bool)
	var roles []models.Role
	for _, a := range assignments {
		if !seen[a.Role] {
			seen[a.Role] = true
			roles = append(roles, a.Role)
		}
	}
	return roles
}

// foldRoles reassigns roles beyond the first limit distinct ones to the first
// assignment's role.
func foldRoles(assignments []models.Assignment, limit int) {
	roles := distinctRoles(assignments)
	if len(roles) <= limit {
		return
	}
	keep := make(map[models.Role]bool, limit)
	for _, role := range roles[:limit] {
		keep[role] = true
	}
	for i := range assignments {
		if !keep[assignments[i].Role] {
			assignments[i].Role = assignments[0].Role
		}
	}
}

func simplePriority(score float64) models.Priority {
	switch {
	case score >= 0.8:
		return models.PriorityHigh
	case score >= 0.4:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func complexPriority(plan *models.ExecutionPlan) models.Priority {
	steps := len(plan.Steps)
	switch {
	case steps >= 4 || plan.Feasibility < 0.5:
		return models.PriorityHigh
	case steps >= 3 || plan.Feasibility < 1:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}
