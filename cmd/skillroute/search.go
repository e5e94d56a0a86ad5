package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/recommend"
)

var (
	searchLimit     int
	searchMinScore  float64
	searchReasoning bool
	recommendLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank skills against a free-text query",
	Long: `Score every skill against the query and print matches best first.

Scores combine name, description, capability and tag matches with the intent
verbs and domains found in the query. Production skills get a boost.

Examples:
  skillroute search send email
  skillroute search "memory lookup" --limit 3 --reasoning`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <task>",
	Short: "Recommend skills for a task, with reasoning",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommend,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (default: recommend.limit)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "Drop results scoring below this")
	searchCmd.Flags().BoolVar(&searchReasoning, "reasoning", false, "Explain each score")

	recommendCmd.Flags().IntVarP(&recommendLimit, "limit", "n", 0, "Maximum results (default: recommend.limit)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := s.eng.Search(strings.Join(args, " "), recommend.Options{
		Limit:            searchLimit,
		MinScore:         searchMinScore,
		IncludeReasoning: searchReasoning,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(os.Stdout, recs)
	}
	printRecommendations(os.Stdout, recs)
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	task := strings.Join(args, " ")
	recs, err := s.eng.Recommend(task, recommendLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(os.Stdout, map[string]any{
			"task":            task,
			"intent":          s.eng.Intent(task),
			"recommendations": recs,
		})
	}

	intent := s.eng.Intent(task)
	if !intent.Empty() {
		fmt.Println(row("Verbs:", strings.Join(intent.Verbs, ", ")))
		fmt.Println(row("Domains:", strings.Join(intent.Domains, ", ")))
		fmt.Println()
	}
	printRecommendations(os.Stdout, recs)
	return nil
}
