// Package rules holds the closed vocabularies and phrase tables that drive
// intent extraction, dependency detection and goal decomposition.
//
// The tables are plain data so they can be audited, unit tested and replaced
// from a YAML file without touching the scorer or decomposer.
package rules

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Tables is the full set of rule tables.
type Tables struct {
	// Verbs is the closed vocabulary of action verbs.
	Verbs []string `yaml:"verbs"`
	// Domains is the closed vocabulary of domain nouns.
	Domains []string `yaml:"domains"`
	// StopWords are ignored when tokenizing queries.
	StopWords []string `yaml:"stop_words"`
	// DependencyPhrases introduce a strong dependency on a named skill.
	DependencyPhrases []string `yaml:"dependency_phrases"`
	// DependencySections are heading keywords whose sections list dependencies.
	DependencySections []string `yaml:"dependency_sections"`
	// Conjunctions split a goal into parallel parts.
	Conjunctions []string `yaml:"conjunctions"`
	// Sequencers split a goal into ordered parts.
	Sequencers []string `yaml:"sequencers"`
	// Prepositions drive the retrieve-then-process fallback split.
	Prepositions []string `yaml:"prepositions"`
}

// Default returns the built-in rule tables.
func Default() *Tables {
	return &Tables{
		Verbs: []string{
			"search", "find", "send", "analyze", "write", "build", "monitor",
			"schedule", "generate", "create", "fetch", "read", "update",
			"delete", "deploy", "test", "summarize", "notify", "track",
			"retrieve", "store", "convert", "parse", "review", "plan", "post",
		},
		Domains: []string{
			"email", "memory", "webhook", "calendar", "document", "documentation",
			"report", "database", "file", "code", "git", "slack", "notification",
			"api", "web", "image", "pdf", "csv", "json", "embedding", "task",
		},
		StopWords: []string{
			"a", "an", "the", "of", "to", "in", "on", "at", "by", "is", "it",
			"and", "or", "then", "for", "from", "with", "into", "me", "my",
			"all", "some", "this", "that", "be", "as",
		},
		DependencyPhrases: []string{
			"requires", "depends on", "uses", "integrates with", "built on",
		},
		DependencySections: []string{
			"dependencies", "dependency", "integration", "integrations", "requires",
		},
		Conjunctions: []string{", and ", " and ", " & "},
		Sequencers:   []string{", and then ", " and then ", ", then ", " then ", " after that ", " followed by "},
		Prepositions: []string{"from", "using", "with", "via"},
	}
}

// LoadFile reads rule tables from a YAML file. Lists present in the file
// replace the defaults; omitted lists keep their default values.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML rule tables over the defaults.
func Parse(data []byte) (*Tables, error) {
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	t := Default()
	replace(&t.Verbs, words(override.Verbs))
	replace(&t.Domains, words(override.Domains))
	replace(&t.StopWords, words(override.StopWords))
	replace(&t.DependencyPhrases, words(override.DependencyPhrases))
	replace(&t.DependencySections, words(override.DependencySections))
	replace(&t.Conjunctions, separators(override.Conjunctions))
	replace(&t.Sequencers, separators(override.Sequencers))
	replace(&t.Prepositions, words(override.Prepositions))
	return t, nil
}

func replace(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

// words lowercases and trims entries, dropping blanks.
func words(in []string) []string {
	var out []string
	for _, w := range in {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// separators drops blank entries but keeps surrounding spaces, which mark
// word boundaries.
func separators(in []string) []string {
	var out []string
	for _, sep := range in {
		if strings.TrimSpace(sep) != "" {
			out = append(out, strings.ToLower(sep))
		}
	}
	return out
}

// IsStopWord reports whether the lowercase token is a stop word.
func (t *Tables) IsStopWord(token string) bool {
	for _, w := range t.StopWords {
		if w == token {
			return true
		}
	}
	return false
}

// MatchVerb returns the canonical verb for a lowercase token, or "".
// Simple inflections (-s, -es, -ing, -ed) are accepted.
func (t *Tables) MatchVerb(token string) string {
	for _, v := range t.Verbs {
		if inflectionOf(token, v) {
			return v
		}
	}
	return ""
}

// MatchDomain returns the canonical domain for a lowercase token, or "".
func (t *Tables) MatchDomain(token string) string {
	for _, d := range t.Domains {
		if token == d || token == d+"s" {
			return d
		}
	}
	return ""
}

// IsDependencySection reports whether a heading names a dependency or
// integration section.
func (t *Tables) IsDependencySection(heading string) bool {
	lower := strings.ToLower(heading)
	for _, kw := range t.DependencySections {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func inflectionOf(token, verb string) bool {
	if verb == "" {
		return false
	}
	if token == verb {
		return true
	}
	if !strings.HasPrefix(token, verb[:len(verb)-1]) {
		return false
	}
	switch token {
	case verb + "s", verb + "es", verb + "ing", verb + "ed", verb + "d":
		return true
	}
	if strings.HasSuffix(verb, "e") {
		stem := verb[:len(verb)-1]
		return token == stem+"ing"
	}
	if strings.HasSuffix(verb, "y") {
		stem := verb[:len(verb)-1]
		return token == stem+"ies" || token == stem+"ied"
	}
	return false
}
