// Package recommend scores skills against free-text queries.
//
// Scoring is a weighted sum of lexical signals (name, description,
// capabilities, tags) plus an intent bonus for action verbs and domain nouns
// that line up with the skill's action:/domain: tags. Production skills get a
// multiplicative boost. Scores are deterministic for a given snapshot.
package recommend

import (
	"math"
	"sort"
	"strings"

	"github.com/ShayCichocki/skillroute/internal/ingest"
	"github.com/ShayCichocki/skillroute/internal/registry"
	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// Weights is the scoring policy.
type Weights struct {
	// Name is added per query token found in the skill name.
	Name float64 `mapstructure:"name"`
	// Description scales the fraction of long query tokens found in the description.
	Description float64 `mapstructure:"description"`
	// Capability is added per query token found in a capability phrase.
	Capability float64 `mapstructure:"capability"`
	// Tag is added per query token found in a tag.
	Tag float64 `mapstructure:"tag"`
	// Intent is added per extracted verb or domain matching an action:/domain: tag.
	Intent float64 `mapstructure:"intent"`
	// ProductionBoost multiplies the score of production skills.
	ProductionBoost float64 `mapstructure:"production_boost"`
}

// DefaultWeights returns the built-in scoring policy.
func DefaultWeights() Weights {
	return Weights{
		Name:            0.40,
		Description:     0.30,
		Capability:      0.15,
		Tag:             0.10,
		Intent:          0.15,
		ProductionBoost: 1.2,
	}
}

// Options bounds a result list.
type Options struct {
	// Limit caps the number of results. Zero means no cap.
	Limit int
	// MinScore drops results scoring below it. Zero-score skills are always dropped.
	MinScore float64
	// IncludeReasoning fills Recommendation.Reasoning.
	IncludeReasoning bool
}

// Intent is the set of vocabulary words found in a text.
type Intent struct {
	Verbs   []string `json:"verbs"`
	Domains []string `json:"domains"`
}

// Empty reports whether no verbs or domains were found.
func (i Intent) Empty() bool {
	return len(i.Verbs) == 0 && len(i.Domains) == 0
}

// Scorer computes relevance scores.
type Scorer struct {
	rules   *rules.Tables
	weights Weights
}

// NewScorer creates a Scorer. A nil table set uses rules.Default().
func NewScorer(tables *rules.Tables, weights Weights) *Scorer {
	if tables == nil {
		tables = rules.Default()
	}
	return &Scorer{rules: tables, weights: weights}
}

// Rules returns the rule tables the scorer uses.
func (sc *Scorer) Rules() *rules.Tables {
	return sc.rules
}

// query is a tokenized search text.
type query struct {
	tokens []string
	intent Intent
}

func (sc *Scorer) parse(text string) query {
	var tokens []string
	seen := make(map[string]bool)
	for _, tok := range ingest.Tokenize(text) {
		if seen[tok] || sc.rules.IsStopWord(tok) {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return query{tokens: tokens, intent: sc.ExtractIntent(text)}
}

// ExtractIntent finds action verbs and domain nouns in text. Words outside the
// vocabularies are ignored.
func (sc *Scorer) ExtractIntent(text string) Intent {
	var intent Intent
	verbs := make(map[string]bool)
	domains := make(map[string]bool)
	for _, tok := range ingest.Tokenize(text) {
		if v := sc.rules.MatchVerb(tok); v != "" && !verbs[v] {
			verbs[v] = true
			intent.Verbs = append(intent.Verbs, v)
		}
		if d := sc.rules.MatchDomain(tok); d != "" && !domains[d] {
			domains[d] = true
			intent.Domains = append(intent.Domains, d)
		}
	}
	return intent
}

// Score returns the relevance of s to text.
func (sc *Scorer) Score(text string, s *models.Skill) float64 {
	return sc.score(sc.parse(text), s)
}

func (sc *Scorer) score(q query, s *models.Skill) float64 {
	name := strings.ToLower(s.Name)
	desc := strings.ToLower(s.Description)
	caps := strings.ToLower(strings.Join(s.Capabilities, "\n"))
	tags := strings.ToLower(strings.Join(s.Tags, "\n"))

	var score float64
	var long, longHits int
	for _, tok := range q.tokens {
		if len(tok) >= 2 && strings.Contains(name, tok) {
			score += sc.weights.Name
		}
		if len(tok) >= 4 {
			long++
			if strings.Contains(desc, tok) {
				longHits++
			}
		}
		if len(tok) >= 3 && strings.Contains(caps, tok) {
			score += sc.weights.Capability
		}
		if len(tok) >= 3 && strings.Contains(tags, tok) {
			score += sc.weights.Tag
		}
	}
	if long > 0 {
		score += sc.weights.Description * float64(longHits) / float64(long)
	}

	for _, v := range q.intent.Verbs {
		if s.HasTag("action:" + v) {
			score += sc.weights.Intent
		}
	}
	for _, d := range q.intent.Domains {
		if s.HasTag("domain:" + d) {
			score += sc.weights.Intent
		}
	}

	if s.Status == models.SkillStatusProduction {
		score *= sc.weights.ProductionBoost
	}
	return round(score)
}

// Search ranks every skill in snap against text. Ties keep registry order.
func (sc *Scorer) Search(text string, snap *registry.Snapshot, opts Options) []models.Recommendation {
	q := sc.parse(text)

	var out []models.Recommendation
	for _, s := range snap.Skills() {
		score := sc.score(q, s)
		if score <= 0 || score < opts.MinScore {
			continue
		}
		rec := models.Recommendation{Skill: s, Score: score}
		if opts.IncludeReasoning {
			rec.Reasoning = sc.reasoning(q, s)
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// Recommend ranks skills for a task description and explains each match.
func (sc *Scorer) Recommend(task string, snap *registry.Snapshot, opts Options) []models.Recommendation {
	opts.IncludeReasoning = true
	return sc.Search(task, snap, opts)
}

// Best returns the top-scoring skill at or above floor.
func (sc *Scorer) Best(text string, snap *registry.Snapshot, floor float64) (models.Recommendation, bool) {
	recs := sc.Search(text, snap, Options{Limit: 1, MinScore: floor})
	if len(recs) == 0 {
		return models.Recommendation{}, false
	}
	return recs[0], true
}

// reasoning builds the fixed-template explanation for a match, for example
// "handles send operations; works with email; production-ready".
func (sc *Scorer) reasoning(q query, s *models.Skill) string {
	var parts []string
	for _, v := range q.intent.Verbs {
		if s.HasTag("action:" + v) {
			parts = append(parts, "handles "+v+" operations")
		}
	}
	for _, d := range q.intent.Domains {
		if s.HasTag("domain:" + d) {
			parts = append(parts, "works with "+d)
		}
	}

	if len(parts) == 0 {
		name := strings.ToLower(s.Name)
		var hits []string
		for _, tok := range q.tokens {
			if len(tok) >= 2 && strings.Contains(name, tok) {
				hits = append(hits, tok)
			}
		}
		if len(hits) > 0 {
			parts = append(parts, "name matches "+strings.Join(hits, ", "))
		} else {
			parts = append(parts, "related description or capabilities")
		}
	}

	switch s.Status {
	case models.SkillStatusProduction:
		parts = append(parts, "production-ready")
	case models.SkillStatusExperimental, models.SkillStatusDeprecated:
		parts = append(parts, string(s.Status))
	}
	return strings.Join(parts, "; ")
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
