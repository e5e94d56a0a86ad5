// Package models defines the shared data types for skillroute.
package models

import "strings"

// SkillStatus represents the maturity of a skill.
type SkillStatus string

const (
	// SkillStatusProduction marks a skill that is ready for general use.
	SkillStatusProduction SkillStatus = "production"
	// SkillStatusDevelopment marks a skill under active development.
	SkillStatusDevelopment SkillStatus = "development"
	// SkillStatusExperimental marks a skill that may change or disappear.
	SkillStatusExperimental SkillStatus = "experimental"
	// SkillStatusDeprecated marks a skill that should no longer be used.
	SkillStatusDeprecated SkillStatus = "deprecated"
	// SkillStatusUnknown is used when the source declares no recognised status.
	SkillStatusUnknown SkillStatus = "unknown"
)

// Valid returns true if the status is a known value.
func (s SkillStatus) Valid() bool {
	switch s {
	case SkillStatusProduction, SkillStatusDevelopment, SkillStatusExperimental,
		SkillStatusDeprecated, SkillStatusUnknown:
		return true
	default:
		return false
	}
}

// ParseSkillStatus normalises a free-form status string.
// Unrecognised values map to SkillStatusUnknown.
func ParseSkillStatus(s string) SkillStatus {
	status := SkillStatus(strings.ToLower(strings.TrimSpace(s)))
	if status.Valid() {
		return status
	}
	switch status {
	case "prod", "stable":
		return SkillStatusProduction
	case "dev", "beta":
		return SkillStatusDevelopment
	case "alpha", "experiment":
		return SkillStatusExperimental
	}
	return SkillStatusUnknown
}

// Section is a headed block of free text from a skill's source document.
type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// Skill is a named, declared capability. A Skill is never mutated after it
// has been built; reloads replace it wholesale.
type Skill struct {
	// Name is the unique key of the skill.
	Name string `json:"name"`
	// Description is the one-paragraph summary of what the skill does.
	Description string `json:"description"`
	// Status is the maturity of the skill.
	Status SkillStatus `json:"status"`
	// Version is the version string declared by the source, if any.
	Version string `json:"version,omitempty"`
	// Capabilities are short phrases describing what the skill can do.
	Capabilities []string `json:"capabilities,omitempty"`
	// Tags are namespaced labels such as "domain:email" or "action:send".
	Tags []string `json:"tags,omitempty"`
	// DeclaredDependencies are skill names the source says it depends on.
	// They may name skills that are not loaded.
	DeclaredDependencies []string `json:"declared_dependencies,omitempty"`
	// ComplexityScore is a derived 1-10 estimate.
	ComplexityScore int `json:"complexity_score"`
	// Sections holds the headed body text used for cross-reference detection.
	Sections []Section `json:"sections,omitempty"`
	// SourceID identifies the backing source under the skills root.
	SourceID string `json:"source_id"`
	// SourcePath is the file the skill was ingested from.
	SourcePath string `json:"source_path,omitempty"`
	// ContentHash is the hash of the raw source bytes.
	ContentHash uint64 `json:"content_hash,omitempty"`
}

// HasTag reports whether the skill carries the exact tag.
func (s *Skill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Body returns the concatenated section text of the skill.
func (s *Skill) Body() string {
	var b strings.Builder
	for i, sec := range s.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sec.Content)
	}
	return b.String()
}

// ComplexityBucket classifies a complexity score as low (1-3), medium (4-7)
// or high (8-10).
func ComplexityBucket(score int) string {
	switch {
	case score <= 3:
		return "low"
	case score <= 7:
		return "medium"
	default:
		return "high"
	}
}

// Recommendation is a scored match of a skill against a query.
type Recommendation struct {
	Skill     *Skill  `json:"skill"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
}
