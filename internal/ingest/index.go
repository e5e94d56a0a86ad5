package ingest

import (
	"strings"
	"unicode"

	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// capabilitySections are headings whose bullet lists are read as capabilities.
var capabilitySections = []string{"capabilit", "feature", "what it does", "can do"}

// Indexer derives capabilities, tags and a complexity score for a Record.
type Indexer struct {
	rules *rules.Tables
}

// NewIndexer creates an Indexer using the given rule tables.
// A nil table set uses rules.Default().
func NewIndexer(tables *rules.Tables) *Indexer {
	if tables == nil {
		tables = rules.Default()
	}
	return &Indexer{rules: tables}
}

// Build produces the immutable Skill for a record.
func (ix *Indexer) Build(rec *Record, src Source, hash uint64) *models.Skill {
	name := rec.Name
	if name == "" {
		name = src.ID
	}

	capabilities := ix.capabilities(rec)
	skill := &models.Skill{
		Name:                 name,
		Description:          rec.Description,
		Status:               models.ParseSkillStatus(rec.Status),
		Version:              rec.Version,
		Capabilities:         capabilities,
		Tags:                 ix.tags(rec, name, capabilities),
		DeclaredDependencies: dedupe(rec.Dependencies),
		Sections:             rec.Sections,
		SourceID:             src.ID,
		SourcePath:           src.Path,
		ContentHash:          hash,
	}
	skill.ComplexityScore = Complexity(skill)
	return skill
}

// capabilities merges front-matter capabilities with bullet items from
// capability sections, keeping first-seen order.
func (ix *Indexer) capabilities(rec *Record) []string {
	caps := append([]string(nil), rec.Capabilities...)
	for _, sec := range rec.Sections {
		if !isCapabilitySection(sec.Heading) {
			continue
		}
		for _, line := range strings.Split(sec.Content, "\n") {
			if item, ok := bulletItem(line); ok {
				caps = append(caps, item)
			}
		}
	}
	return dedupe(caps)
}

// tags keeps declared tags (lowercased) and adds action:/domain: tags for
// vocabulary words found in the name, description and capabilities.
func (ix *Indexer) tags(rec *Record, name string, capabilities []string) []string {
	tags := make([]string, 0, len(rec.Tags)+4)
	for _, t := range rec.Tags {
		tags = append(tags, strings.ToLower(t))
	}

	text := name + " " + rec.Description + " " + strings.Join(capabilities, " ")
	for _, tok := range Tokenize(text) {
		if v := ix.rules.MatchVerb(tok); v != "" {
			tags = append(tags, "action:"+v)
		}
		if d := ix.rules.MatchDomain(tok); d != "" {
			tags = append(tags, "domain:"+d)
		}
	}
	return dedupe(tags)
}

// Complexity estimates a 1-10 score from capability count, declared
// dependencies and body length.
func Complexity(s *models.Skill) int {
	words := len(strings.Fields(s.Body()))
	score := 1 + len(s.Capabilities)/2 + len(s.DeclaredDependencies) + words/400
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isCapabilitySection(heading string) bool {
	lower := strings.ToLower(heading)
	for _, kw := range capabilitySections {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func bulletItem(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(trimmed, marker) {
			item := strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
			item = strings.Trim(item, "*_`")
			return item, item != ""
		}
	}
	return "", false
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
