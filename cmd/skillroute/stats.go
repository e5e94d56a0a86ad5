package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/engine"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry, graph, router and reload statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop cached routing decisions and the persisted snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.eng.ClearCache(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		printStatus(os.Stdout, "✓", "Cache cleared", color.FgGreen)
		return nil
	},
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.eng.Stats()
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(os.Stdout, st)
	}
	printStats(os.Stdout, st, s.eng.Profiles())
	return nil
}

func printStats(w io.Writer, st *engine.Stats, profiles []models.AgentProfile) {
	var reg strings.Builder
	reg.WriteString(row("Version:", fmt.Sprintf("%d", st.SnapshotVersion)) + "\n")
	reg.WriteString(row("Loaded:", st.LoadedAt.Local().Format(time.DateTime)) + "\n")
	reg.WriteString(row("Skills:", fmt.Sprintf("%d", st.Skills)) + "\n")

	statuses := []models.SkillStatus{
		models.SkillStatusProduction,
		models.SkillStatusDevelopment,
		models.SkillStatusExperimental,
		models.SkillStatusDeprecated,
		models.SkillStatusUnknown,
	}
	var parts []string
	for _, status := range statuses {
		if n := st.ByStatus[status]; n > 0 {
			parts = append(parts, statusColor(status).Sprintf("%s %d", status, n))
		}
	}
	reg.WriteString(row("By status:", strings.Join(parts, "  ")) + "\n")
	reg.WriteString(row("Complexity:", fmt.Sprintf("low %d  medium %d  high %d",
		st.Complexity["low"], st.Complexity["medium"], st.Complexity["high"])))

	fmt.Fprintln(w, headingStyle.Render("Registry"))
	fmt.Fprintln(w, boxStyle.Render(reg.String()))

	var g strings.Builder
	g.WriteString(row("Edges:", fmt.Sprintf("%d", st.Edges)) + "\n")
	cycles := "none"
	if len(st.Cycles) > 0 {
		var cs []string
		for _, c := range st.Cycles {
			cs = append(cs, strings.Join(c, " → "))
		}
		cycles = color.YellowString(strings.Join(cs, "; "))
	}
	g.WriteString(row("Cycles:", cycles) + "\n")
	g.WriteString(row("Critical:", orNone(st.Critical)) + "\n")
	g.WriteString(row("Roots:", orNone(st.Roots)) + "\n")
	g.WriteString(row("Leaves:", orNone(st.Leaves)))

	fmt.Fprintln(w, headingStyle.Render("Graph"))
	fmt.Fprintln(w, boxStyle.Render(g.String()))

	limits := make(map[models.Role]int, len(profiles))
	for _, p := range profiles {
		limits[p.Role] = p.MaxConcurrent
	}
	var r strings.Builder
	r.WriteString(row("Cached:", fmt.Sprintf("%d routes", st.CacheEntries)))
	for _, ls := range st.Roles {
		r.WriteString("\n")
		r.WriteString(row(string(ls.Role)+":", fmt.Sprintf("%d/%d active  %d done  %d failed",
			ls.Active, limits[ls.Role], ls.Completed, ls.Failed)))
	}

	fmt.Fprintln(w, headingStyle.Render("Router"))
	fmt.Fprintln(w, boxStyle.Render(r.String()))

	if len(st.RecentBatches) == 0 {
		return
	}
	var b strings.Builder
	for i, rec := range st.RecentBatches {
		if i > 0 {
			b.WriteString("\n")
		}
		line := fmt.Sprintf("%s  +%d ~%d -%d", rec.StartedAt.Local().Format(time.DateTime), rec.New, rec.Reloaded, rec.Removed)
		if rec.Failed > 0 {
			line += color.RedString("  %d failed", rec.Failed)
		}
		b.WriteString(line)
	}
	fmt.Fprintln(w, headingStyle.Render("Recent reloads"))
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

func orNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
