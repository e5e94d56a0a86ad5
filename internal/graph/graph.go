// Package graph provides the skill dependency graph.
package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// criticalDependents is the number of direct dependents that makes a skill critical.
const criticalDependents = 3

// Graph is a directed graph of skill dependencies. Skills are nodes, and an
// edge A -> B means A depends on B. A Graph is immutable once built and safe
// for concurrent readers.
type Graph struct {
	// order holds node names in registry order.
	order []string
	// nodes is the set of node names.
	nodes map[string]bool
	// edges maps a skill to the skills it depends on (sorted).
	edges map[string][]string
	// reverse maps a skill to the skills depending on it (sorted).
	reverse map[string][]string
	logger  *slog.Logger
}

// Metrics describes one node's position in the graph.
type Metrics struct {
	Name                   string `json:"name"`
	DirectDependencies     int    `json:"direct_dependencies"`
	TransitiveDependencies int    `json:"transitive_dependencies"`
	DirectDependents       int    `json:"direct_dependents"`
	Depth                  int    `json:"depth"`
	IsCritical             bool   `json:"is_critical"`
	IsLeaf                 bool   `json:"is_leaf"`
	IsRoot                 bool   `json:"is_root"`
}

// ExportedGraph is the serialisable adjacency of a Graph.
type ExportedGraph struct {
	Nodes   []string            `json:"nodes"`
	Forward map[string][]string `json:"forward"`
	Reverse map[string][]string `json:"reverse"`
}

// Build derives the dependency graph from a skill set. Edges come from
// declared dependencies that name a loaded skill, and from references to
// another loaded skill that follow a strong dependency phrase or sit inside a
// dependency section. Dangling names and self references are dropped.
// A nil table set uses rules.Default(); a nil logger discards.
func Build(skills []*models.Skill, tables *rules.Tables, logger *slog.Logger) *Graph {
	if tables == nil {
		tables = rules.Default()
	}
	g := newGraph(logger)

	for _, s := range skills {
		if s == nil || g.nodes[s.Name] {
			continue
		}
		g.order = append(g.order, s.Name)
		g.nodes[s.Name] = true
	}

	for _, s := range skills {
		if s == nil {
			continue
		}
		deps := make(map[string]bool)
		for _, d := range s.DeclaredDependencies {
			if g.nodes[d] && d != s.Name {
				deps[d] = true
			}
		}
		for _, ref := range crossReferences(s, g.order, tables) {
			deps[ref] = true
		}
		for d := range deps {
			g.edges[s.Name] = append(g.edges[s.Name], d)
			g.reverse[d] = append(g.reverse[d], s.Name)
		}
	}
	g.sortAdjacency()

	g.logger.Debug("dependency graph built", "nodes", len(g.order), "edges", g.EdgeCount())
	return g
}

// Restore rebuilds a Graph from an exported adjacency, dropping edges to
// names that are not listed as nodes.
func Restore(exp ExportedGraph, logger *slog.Logger) *Graph {
	g := newGraph(logger)
	for _, name := range exp.Nodes {
		if g.nodes[name] {
			continue
		}
		g.order = append(g.order, name)
		g.nodes[name] = true
	}
	for _, name := range g.order {
		for _, d := range exp.Forward[name] {
			if !g.nodes[d] || d == name {
				continue
			}
			g.edges[name] = append(g.edges[name], d)
			g.reverse[d] = append(g.reverse[d], name)
		}
	}
	g.sortAdjacency()
	return g
}

func newGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Graph{
		nodes:   make(map[string]bool),
		edges:   make(map[string][]string),
		reverse: make(map[string][]string),
		logger:  logger,
	}
}

func (g *Graph) sortAdjacency() {
	for _, m := range []map[string][]string{g.edges, g.reverse} {
		for k := range m {
			sort.Strings(m[k])
			m[k] = compact(m[k])
		}
	}
}

// crossReferences finds other skills named by strong dependency sentences or
// inside dependency sections of s.
func crossReferences(s *models.Skill, names []string, tables *rules.Tables) []string {
	var texts []string
	for _, sec := range s.Sections {
		if tables.IsDependencySection(sec.Heading) {
			texts = append(texts, sec.Content)
			continue
		}
		texts = append(texts, afterDependencyPhrases(sec.Content, tables.DependencyPhrases)...)
	}
	texts = append(texts, afterDependencyPhrases(s.Description, tables.DependencyPhrases)...)

	var refs []string
	for _, name := range names {
		if name == s.Name {
			continue
		}
		for _, text := range texts {
			if mentions(text, name) {
				refs = append(refs, name)
				break
			}
		}
	}
	return refs
}

// afterDependencyPhrases returns, for each sentence containing a dependency
// phrase, the text following the first such phrase.
func afterDependencyPhrases(text string, phrases []string) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		best := -1
		bestLen := 0
		for _, p := range phrases {
			idx := indexWord(lower, strings.ToLower(p))
			if idx >= 0 && (best < 0 || idx < best) {
				best, bestLen = idx, len(p)
			}
		}
		if best >= 0 {
			out = append(out, sentence[best+bestLen:])
		}
	}
	return out
}

func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})
}

// mentions reports whether text contains name as a whole word, ignoring case.
func mentions(text, name string) bool {
	return indexWord(strings.ToLower(text), strings.ToLower(name)) >= 0
}

// indexWord finds needle in haystack at word boundaries. Hyphens and
// underscores count as word characters so "email" does not match "email-sync".
func indexWord(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	offset := 0
	for {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(needle)
		if boundary(haystack, start-1) && boundary(haystack, end) {
			return start
		}
		offset = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	return g.nodes[name]
}

// Nodes returns node names in registry order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.order...)
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	return len(g.order)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// Dependencies returns the skills the named skill directly depends on.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.edges[name]...)
}

// Dependents returns the skills that directly depend on the named skill.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.reverse[name]...)
}

// TransitiveDependencies returns every skill reachable from name, sorted.
// The result never contains name itself, even when name sits on a cycle.
func (g *Graph) TransitiveDependencies(name string) []string {
	seen := map[string]bool{name: true}
	queue := append([]string(nil), g.edges[name]...)
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, g.edges[cur]...)
	}
	sort.Strings(out)
	return out
}

// DependsOn reports whether a transitively depends on b.
func (g *Graph) DependsOn(a, b string) bool {
	if a == b || !g.nodes[a] || !g.nodes[b] {
		return false
	}
	seen := map[string]bool{a: true}
	stack := append([]string(nil), g.edges[a]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == b {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, g.edges[cur]...)
	}
	return false
}

// Cycles returns every distinct dependency cycle. Each cycle lists the path
// from the re-entered skill back to itself, so A -> B -> A is [A B A].
// Rotations of the same cycle are reported once.
func (g *Graph) Cycles() [][]string {
	// Color states: 0 = unvisited, 1 = on stack, 2 = done.
	colors := make(map[string]int, len(g.order))
	var stack []string
	var cycles [][]string
	seen := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		colors[id] = 1
		stack = append(stack, id)

		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				start := indexOf(stack, dep)
				cycle := append(append([]string(nil), stack[start:]...), dep)
				if key := cycleKey(cycle); !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			case 0:
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			visit(id)
		}
	}
	return cycles
}

// cycleKey normalises a closed cycle path so rotations compare equal.
func cycleKey(cycle []string) string {
	ring := cycle[:len(cycle)-1]
	lo := 0
	for i := range ring {
		if ring[i] < ring[lo] {
			lo = i
		}
	}
	rotated := append(append([]string(nil), ring[lo:]...), ring[:lo]...)
	return strings.Join(rotated, "\x00")
}

// TopologicalSort returns every node once, dependencies before dependents.
// Back edges are skipped and reported as warnings rather than failing the
// sort.
func (g *Graph) TopologicalSort() ([]string, []string) {
	colors := make(map[string]int, len(g.order))
	result := make([]string, 0, len(g.order))
	var warnings []string

	var visit func(id string)
	visit = func(id string) {
		colors[id] = 1
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case 1:
				w := fmt.Sprintf("cycle: skipped dependency %s -> %s", id, dep)
				g.logger.Warn("dependency cycle during topological sort", "from", id, "to", dep)
				warnings = append(warnings, w)
			case 0:
				visit(dep)
			}
		}
		colors[id] = 2
		result = append(result, id)
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			visit(id)
		}
	}
	return result, warnings
}

// Metrics returns the metrics of one node. ok is false for unknown names.
func (g *Graph) Metrics(name string) (Metrics, bool) {
	if !g.nodes[name] {
		return Metrics{}, false
	}
	return g.metrics(name, make(map[string]int)), true
}

// AllMetrics returns metrics for every node in registry order.
func (g *Graph) AllMetrics() []Metrics {
	memo := make(map[string]int, len(g.order))
	out := make([]Metrics, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.metrics(name, memo))
	}
	return out
}

func (g *Graph) metrics(name string, depthMemo map[string]int) Metrics {
	direct := len(g.edges[name])
	dependents := len(g.reverse[name])
	return Metrics{
		Name:                   name,
		DirectDependencies:     direct,
		TransitiveDependencies: len(g.TransitiveDependencies(name)),
		DirectDependents:       dependents,
		Depth:                  g.depth(name, depthMemo, make(map[string]bool)),
		IsCritical:             dependents >= criticalDependents,
		IsLeaf:                 direct == 0,
		IsRoot:                 dependents == 0,
	}
}

// depth is the length of the longest dependency chain below name. Edges
// back onto the current path contribute nothing.
func (g *Graph) depth(name string, memo map[string]int, onPath map[string]bool) int {
	if d, ok := memo[name]; ok {
		return d
	}
	onPath[name] = true
	best := 0
	cyclic := false
	for _, dep := range g.edges[name] {
		if onPath[dep] {
			cyclic = true
			continue
		}
		if d := g.depth(dep, memo, onPath) + 1; d > best {
			best = d
		}
	}
	onPath[name] = false
	// Depths computed while a cycle is open depend on the entry point.
	if !cyclic {
		memo[name] = best
	}
	return best
}

// Export returns the adjacency in both directions with sorted lists.
func (g *Graph) Export() ExportedGraph {
	exp := ExportedGraph{
		Nodes:   g.Nodes(),
		Forward: make(map[string][]string, len(g.order)),
		Reverse: make(map[string][]string, len(g.order)),
	}
	for _, name := range g.order {
		exp.Forward[name] = append([]string{}, g.edges[name]...)
		exp.Reverse[name] = append([]string{}, g.reverse[name]...)
	}
	return exp
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}

func compact(items []string) []string {
	if len(items) < 2 {
		return items
	}
	out := items[:1]
	for _, item := range items[1:] {
		if item != out[len(out)-1] {
			out = append(out, item)
		}
	}
	return out
}
