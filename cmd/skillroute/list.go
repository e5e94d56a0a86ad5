package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List registered skills",
	Long: `List skills in registry order.

Filters:
  status:<status>   skills with the given status (production, development, ...)
  tag:<tag>         skills carrying the tag
  <text>            substring of the name or description

Examples:
  skillroute list
  skillroute list status:production
  skillroute list tag:domain:email`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer s.Close()

	skills, err := s.eng.List(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(os.Stdout, skills)
	}
	printSkills(os.Stdout, skills)
	return nil
}
