package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/skillroute/internal/reload"
	"github.com/ShayCichocki/skillroute/internal/tui"
)

var watchPlain bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch skill sources and hot-reload the registry",
	Long: `Watch the skills root and apply changes in debounced batches.

By default an interactive view shows registry stats, a reload log and a
task field that ranks skills against the live catalogue. Use --plain for
one line per reload batch, suitable for logs and pipes.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print batches as lines instead of the interactive view")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Console logs would tear the alternate screen; log.file still applies.
	quietConsole = !watchPlain

	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	events, unsubscribe, err := s.eng.Watch(ctx)
	if err != nil {
		return err
	}
	defer unsubscribe()

	if watchPlain {
		return watchLines(ctx, events)
	}

	p := tea.NewProgram(tui.NewWatchApp(s.eng, events, s.eng.Root()), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch view: %w", err)
	}
	return nil
}

func watchLines(ctx context.Context, events <-chan reload.Event) error {
	printStatus(os.Stdout, "●", "Watching for changes (Ctrl+C to stop)", color.FgCyan)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			printBatch(ev.Batch)
		}
	}
}

func printBatch(b reload.BatchResult) {
	symbol, attr := "✓", color.FgGreen
	if b.Count(reload.StateFailed) > 0 {
		symbol, attr = "⚠", color.FgYellow
	} else if !b.Changed() {
		symbol, attr = "·", color.FgHiBlack
	}
	printStatus(os.Stdout, symbol, fmt.Sprintf("%s  v%d  +%d ~%d -%d",
		b.FinishedAt.Local().Format(time.TimeOnly),
		b.SnapshotVersion,
		b.Count(reload.StateNew),
		b.Count(reload.StateReloaded),
		b.Count(reload.StateRemoved),
	), attr)
	for _, o := range b.Outcomes {
		switch o.State {
		case reload.StateFailed:
			fmt.Printf("    %s %s: %s\n", color.RedString("failed"), o.SourceID, o.Reason)
		case reload.StateUnchanged:
		default:
			fmt.Printf("    %-9s %s\n", o.State, o.SourceID)
		}
	}
}
