package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/compose"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

var (
	composeSequential bool
	composeDurations  map[string]int
)

var composeCmd = &cobra.Command{
	Use:   "compose <goal>",
	Short: "Build an execution plan for a multi-step goal",
	Long: `Split a goal into sub-tasks, match a skill to each, order the steps by
skill dependencies and group independent steps into parallel phases.

Examples:
  skillroute compose "search memory then generate docs and send email"
  skillroute compose "fetch reports, summarize them" --sequential
  skillroute compose "sync calendar then notify team" --duration calendar-sync=120`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCompose,
}

func init() {
	composeCmd.Flags().BoolVar(&composeSequential, "sequential", false, "Run every step in its own phase")
	composeCmd.Flags().StringToIntVar(&composeDurations, "duration", nil, "Fixed step estimate in seconds, as skill=seconds")
}

func runCompose(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	plan, err := s.eng.Compose(strings.Join(args, " "), compose.Options{
		AllowParallel:     !composeSequential,
		DurationOverrides: composeDurations,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(os.Stdout, plan)
	}
	printPlan(os.Stdout, plan)
	return nil
}

func printPlan(w io.Writer, plan *models.ExecutionPlan) {
	fmt.Fprintln(w, headingStyle.Render("Plan: "+plan.Goal))

	var steps strings.Builder
	for i, st := range plan.Steps {
		if i > 0 {
			steps.WriteString("\n")
		}
		if st.Matched() {
			fmt.Fprintf(&steps, "%d. %s %s  %s",
				st.ID,
				color.GreenString(st.SkillName),
				color.HiBlackString("(%.2f, %s)", st.Score, formatSeconds(st.DurationSeconds)),
				st.SubTask.Text,
			)
		} else {
			fmt.Fprintf(&steps, "%d. %s  %s", st.ID, color.RedString("missing"), st.SubTask.Text)
		}
	}
	fmt.Fprintln(w, boxStyle.Render(steps.String()))

	for _, ph := range plan.Phases {
		ids := make([]string, len(ph.StepIDs))
		for i, id := range ph.StepIDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		fmt.Fprintln(w, row(fmt.Sprintf("Phase %d:", ph.Index),
			fmt.Sprintf("%-10s steps %s  %s", ph.Type, strings.Join(ids, ","), formatSeconds(ph.DurationSeconds))))
	}

	fmt.Fprintln(w)
	feasibility := color.New(color.FgGreen)
	if plan.Feasibility < 1 {
		feasibility = color.New(color.FgYellow)
	}
	fmt.Fprintln(w, row("Feasibility:", feasibility.Sprintf("%.0f%%", plan.Feasibility*100)))
	fmt.Fprintln(w, row("Estimate:", formatSeconds(plan.EstimatedDurationSeconds)))
	if len(plan.MissingCapabilities) > 0 {
		fmt.Fprintln(w, row("Missing:", color.RedString(strings.Join(plan.MissingCapabilities, "; "))))
	}
}
