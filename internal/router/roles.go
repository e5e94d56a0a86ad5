package router

import (
	"strings"

	"github.com/ShayCichocki/skillroute/internal/ingest"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// DefaultRole receives work that matches no role keyword.
const DefaultRole = models.RoleResearcher

// DefaultProfiles returns the built-in worker roles. Profile order is the
// keyword table order: the first role with a matching keyword wins.
func DefaultProfiles() []models.AgentProfile {
	return []models.AgentProfile{
		{
			Role:               models.RoleWriter,
			CapabilityKeywords: []string{"write", "document", "documentation", "report", "generate", "summarize", "draft"},
			MaxConcurrent:      2,
			Cost:               1.0,
			QualityScore:       0.85,
		},
		{
			Role:               models.RoleBuilder,
			CapabilityKeywords: []string{"build", "code", "deploy", "refactor", "test", "implement", "script"},
			MaxConcurrent:      2,
			Cost:               1.5,
			QualityScore:       0.9,
		},
		{
			Role:               models.RoleAnalyst,
			CapabilityKeywords: []string{"analyze", "analysis", "pattern", "metric", "classify", "compare"},
			MaxConcurrent:      2,
			Cost:               1.2,
			QualityScore:       0.85,
		},
		{
			Role:               models.RoleOperator,
			CapabilityKeywords: []string{"monitor", "schedule", "calendar", "webhook", "notify", "alert", "cron"},
			MaxConcurrent:      1,
			Cost:               0.8,
			QualityScore:       0.8,
		},
		{
			Role:               models.RoleResearcher,
			CapabilityKeywords: []string{"search", "find", "research", "retrieve", "fetch", "memory", "lookup"},
			MaxConcurrent:      3,
			Cost:               0.5,
			QualityScore:       0.8,
		},
	}
}

// RoleSelection is the outcome of mapping work onto a role.
type RoleSelection struct {
	Role models.Role
	// MatchedKeyword is the keyword that selected the role, if any.
	MatchedKeyword string
	Reason         string
}

// classifier maps skill and task text onto roles.
type classifier struct {
	profiles    []models.AgentProfile
	defaultRole models.Role
}

// Classify picks the role for a skill applied to text. The skill's name and
// tags are tried first, then the text; within each, the first profile owning
// a matching keyword wins. Otherwise the default role is used.
func (c classifier) Classify(skill *models.Skill, text string) RoleSelection {
	if skill != nil {
		words := skill.Name + " " + strings.Join(skill.Tags, " ")
		if sel, ok := c.match(ingest.Tokenize(words)); ok {
			return sel
		}
	}
	if sel, ok := c.match(ingest.Tokenize(text)); ok {
		return sel
	}
	return RoleSelection{
		Role:   c.defaultRole,
		Reason: "no keyword match, defaulting to " + string(c.defaultRole),
	}
}

func (c classifier) match(tokens []string) (RoleSelection, bool) {
	for _, p := range c.profiles {
		for _, kw := range p.CapabilityKeywords {
			kw = strings.ToLower(kw)
			for _, tok := range tokens {
				if keywordMatch(tok, kw) {
					return RoleSelection{
						Role:           p.Role,
						MatchedKeyword: kw,
						Reason:         "matched " + string(p.Role) + " keyword",
					}, true
				}
			}
		}
	}
	return RoleSelection{}, false
}

func keywordMatch(token, kw string) bool {
	switch token {
	case kw, kw + "s", kw + "es", kw + "ing", kw + "ed":
		return true
	}
	return false
}
