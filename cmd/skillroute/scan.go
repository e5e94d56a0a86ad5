package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rebuild the registry from skill sources",
	Long: `Parse every skill source under the skills root, rebuild the dependency
graph and refresh the snapshot cache.

Sources that fail to parse are skipped and reported; the scan only fails
when the skills root itself cannot be read.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.eng.Scan(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		warnings := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			warnings = append(warnings, w.String())
		}
		return printJSON(os.Stdout, map[string]any{
			"root":        s.eng.Root(),
			"skills":      res.Skills,
			"warnings":    warnings,
			"duration_ms": res.Duration.Milliseconds(),
		})
	}

	printStatus(os.Stdout, "✓", fmt.Sprintf("Loaded %d skills from %s in %s",
		res.Skills, s.eng.Root(), res.Duration.Round(time.Millisecond)), color.FgGreen)
	for _, w := range res.Warnings {
		printStatus(os.Stdout, "⚠", w.String(), color.FgYellow)
	}
	return nil
}
