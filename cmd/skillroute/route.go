package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/router"
	"github.com/ShayCichocki/skillroute/pkg/models"
)

var (
	routeDecompose bool
	routeParallel  bool
	routeRole      string
	routeMaxAgents int
	routeWait      time.Duration
)

var routeCmd = &cobra.Command{
	Use:   "route <task>",
	Short: "Route a task to worker roles",
	Long: `Pick skills for a task and assign them to worker roles.

Simple tasks go to the best matching skill. With --decompose, multi-step
tasks are composed into a plan and each matched step becomes an assignment.

With --wait, a no-capacity result is retried until a slot frees up or the
wait expires.

Examples:
  skillroute route "send the weekly email"
  skillroute route "search memory then write a report" --decompose
  skillroute route "deploy the service" --role builder --wait 30s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().BoolVar(&routeDecompose, "decompose", false, "Compose multi-step tasks into a plan")
	routeCmd.Flags().BoolVar(&routeParallel, "parallel", true, "Allow parallel phases when decomposing")
	routeCmd.Flags().StringVar(&routeRole, "role", "", "Preferred worker role")
	routeCmd.Flags().IntVar(&routeMaxAgents, "max-agents", 0, "Maximum distinct roles (0 means no cap)")
	routeCmd.Flags().DurationVar(&routeWait, "wait", 0, "Wait up to this long for capacity")
}

func runRoute(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	task := strings.Join(args, " ")
	opts := router.Options{
		Decompose:     routeDecompose,
		AllowParallel: routeParallel,
		PreferredRole: models.Role(routeRole),
		MaxAgents:     routeMaxAgents,
	}

	var decision *models.RoutingDecision
	if routeWait > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), routeWait)
		defer cancel()
		decision, err = s.eng.Dispatch(ctx, task, opts)
	} else {
		decision, err = s.eng.Route(cmd.Context(), task, opts)
	}
	if decision == nil {
		return err
	}
	if err != nil {
		s.logger.Debug("dispatch stopped waiting", "error", err)
	}

	if jsonOutput {
		return printJSON(os.Stdout, decision)
	}
	printDecision(os.Stdout, decision)
	return nil
}

func printDecision(w io.Writer, d *models.RoutingDecision) {
	switch d.Status {
	case models.RoutingRouted:
		printStatus(w, "✓", fmt.Sprintf("Routed (%s, %s priority)", d.Type, d.Priority), color.FgGreen)
	case models.RoutingNoCapacity:
		printStatus(w, "⚠", "No capacity: "+d.Reason, color.FgYellow)
	default:
		printStatus(w, "✗", "No match: "+d.Reason, color.FgRed)
	}
	if d.Cached {
		fmt.Fprintln(w, color.HiBlackString("  from routing cache"))
	}

	for _, a := range d.Assignments {
		step := ""
		if a.StepID > 0 {
			step = fmt.Sprintf("step %d  ", a.StepID)
		}
		fmt.Fprintf(w, "  %s%s → %s\n", step, color.CyanString("%-10s", a.Role), a.SkillName)
	}
	if d.Plan != nil && len(d.Plan.MissingCapabilities) > 0 {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("missing:"), strings.Join(d.Plan.MissingCapabilities, "; "))
	}
	if d.Status != models.RoutingRouted && len(d.Recommendations) > 0 {
		fmt.Fprintln(w, "\nClosest skills:")
		printRecommendations(w, d.Recommendations)
	}
}
