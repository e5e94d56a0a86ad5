package compose

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ShayCichocki/skillroute/internal/rules"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

// listItem matches a numbered ("1." / "1)") or bulleted ("-", "*", "•") line.
var listItem = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+)$`)

// DecomposeGoal splits a goal into subtasks. Rules are tried in order and the
// first one that yields at least two parts wins: conjunctions (parallel),
// sequencing words (sequential), list markup (sequential), then the
// prepositional fallback "X from Y" -> "retrieve Y", "X" (sequential).
// Anything else is a single subtask. A blank goal has no subtasks.
//
// A serial comma ("a, b, and c") marks a list, so every comma before it
// separates items too. Without one ("a, b and c") commas are kept.
func DecomposeGoal(goal string, tables *rules.Tables) []models.SubTask {
	if tables == nil {
		tables = rules.Default()
	}
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil
	}

	// A conjunction inside a sequencing phrase ("and then") is not a conjunction.
	if parts := splitPhrases(goal, tables.Conjunctions, tables.Sequencers); len(parts) > 1 {
		return subTasks(parts, models.HintParallel)
	}
	if parts := splitPhrases(goal, tables.Sequencers, nil); len(parts) > 1 {
		return subTasks(parts, models.HintSequential)
	}
	if parts := listItems(goal); len(parts) > 1 {
		return subTasks(parts, models.HintSequential)
	}
	if parts := prepositional(goal, tables.Prepositions); len(parts) > 1 {
		return subTasks(parts, models.HintSequential)
	}
	return []models.SubTask{{Index: 0, Text: goal, Hint: models.HintSingle}}
}

func subTasks(parts []string, hint models.SubTaskHint) []models.SubTask {
	out := make([]models.SubTask, len(parts))
	for i, p := range parts {
		out[i] = models.SubTask{Index: i, Text: p, Hint: hint}
	}
	return out
}

// splitPhrases splits text at every case-insensitive occurrence of a
// separator, skipping occurrences that overlap a shadow phrase. When the
// matched separator starts with a comma, the text before it is also split at
// commas. Empty parts are dropped.
func splitPhrases(text string, seps, shadow []string) []string {
	lower := asciiLower(text)

	masked := make([]bool, len(lower))
	for _, sh := range shadow {
		sh = asciiLower(sh)
		if sh == "" {
			continue
		}
		for off := 0; ; {
			idx := strings.Index(lower[off:], sh)
			if idx < 0 {
				break
			}
			for k := off + idx; k < off+idx+len(sh); k++ {
				masked[k] = true
			}
			off += idx + 1
		}
	}

	ordered := make([]string, 0, len(seps))
	for _, s := range seps {
		if s != "" {
			ordered = append(ordered, asciiLower(s))
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	var parts []string
	start := 0
	for i := 0; i < len(lower); {
		sep := ""
		for _, s := range ordered {
			if strings.HasPrefix(lower[i:], s) && !anyMasked(masked, i, i+len(s)) {
				sep = s
				break
			}
		}
		if sep == "" {
			i++
			continue
		}
		if strings.HasPrefix(sep, ",") {
			// Serial comma: "a, b, and c" separates every item before it.
			for _, item := range strings.Split(text[start:i], ",") {
				parts = appendPart(parts, item)
			}
		} else {
			parts = appendPart(parts, text[start:i])
		}
		i += len(sep)
		start = i
	}
	return appendPart(parts, text[start:])
}

func anyMasked(masked []bool, from, to int) bool {
	for k := from; k < to; k++ {
		if masked[k] {
			return true
		}
	}
	return false
}

func appendPart(parts []string, p string) []string {
	p = strings.Trim(strings.TrimSpace(p), ",;")
	if p = strings.TrimSpace(p); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func listItems(goal string) []string {
	var items []string
	for _, line := range strings.Split(goal, "\n") {
		if m := listItem.FindStringSubmatch(line); m != nil {
			items = appendPart(items, m[1])
		}
	}
	return items
}

// prepositional splits "X <prep> Y" at the first preposition into
// "retrieve Y" followed by "X".
func prepositional(goal string, preps []string) []string {
	lower := asciiLower(goal)
	best, bestLen := -1, 0
	for _, p := range preps {
		needle := " " + asciiLower(p) + " "
		if idx := strings.Index(lower, needle); idx >= 0 && (best < 0 || idx < best) {
			best, bestLen = idx, len(needle)
		}
	}
	if best < 0 {
		return nil
	}
	head := strings.TrimSpace(goal[:best])
	tail := strings.TrimSpace(goal[best+bestLen:])
	if head == "" || tail == "" {
		return nil
	}
	return []string{"retrieve " + tail, head}
}

// asciiLower lowercases ASCII letters only so byte offsets stay aligned with
// the original text.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
