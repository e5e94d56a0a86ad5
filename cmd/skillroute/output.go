package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/skillroute/pkg/models"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value
}

// statusColor maps a skill status to its display colour.
func statusColor(s models.SkillStatus) *color.Color {
	switch s {
	case models.SkillStatusProduction:
		return color.New(color.FgGreen)
	case models.SkillStatusDevelopment:
		return color.New(color.FgCyan)
	case models.SkillStatusExperimental:
		return color.New(color.FgYellow)
	case models.SkillStatusDeprecated:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgHiBlack)
	}
}

func printRecommendations(w io.Writer, recs []models.Recommendation) {
	if len(recs) == 0 {
		printStatus(w, "✗", "No matching skills", color.FgYellow)
		return
	}
	score := color.New(color.FgGreen, color.Bold)
	for i, r := range recs {
		fmt.Fprintf(w, "%2d. %s  %s %s\n",
			i+1,
			score.Sprintf("%.3f", r.Score),
			r.Skill.Name,
			statusColor(r.Skill.Status).Sprintf("[%s]", r.Skill.Status),
		)
		if r.Skill.Description != "" {
			fmt.Fprintf(w, "    %s\n", truncate(r.Skill.Description, 96))
		}
		if r.Reasoning != "" {
			fmt.Fprintf(w, "    %s\n", color.HiBlackString(r.Reasoning))
		}
	}
}

func printSkills(w io.Writer, skills []*models.Skill) {
	if len(skills) == 0 {
		printStatus(w, "✗", "No skills", color.FgYellow)
		return
	}
	for _, s := range skills {
		fmt.Fprintf(w, "%-32s %s  complexity %d\n",
			s.Name,
			statusColor(s.Status).Sprintf("%-12s", s.Status),
			s.ComplexityScore,
		)
		if len(s.Tags) > 0 {
			fmt.Fprintf(w, "    %s\n", color.HiBlackString(strings.Join(s.Tags, " ")))
		}
	}
	fmt.Fprintf(w, "\n%d skills\n", len(skills))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatSeconds(secs int) string {
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs%60 == 0 {
		return fmt.Sprintf("%dm", secs/60)
	}
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}
