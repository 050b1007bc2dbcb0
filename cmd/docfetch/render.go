package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/docfetch/pkg/batch"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	okStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	failStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)
)

func formatReport(r *batch.Report, asJSON bool) (string, error) {
	if asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}
		return string(data), nil
	}
	return renderReport(r), nil
}

// renderReport draws the report as a bordered terminal summary.
func renderReport(r *batch.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Batch "+r.BatchID) + "\n")
	b.WriteString(r.Message + "\n\n")

	row := func(label string, value any) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)) + fmt.Sprint(value) + "\n")
	}
	row("Directory", r.Directory)
	row("Attempted", fmt.Sprintf("%d of %d", r.Attempted, r.Total))
	row("Generated", okStyle.Render(fmt.Sprint(r.SuccessCount)))
	row("Failed", failStyle.Render(fmt.Sprint(r.FailureCount)))
	row("Duration", r.Duration.Round(time.Millisecond))

	if len(r.Failures) > 0 {
		b.WriteString("\n" + titleStyle.Render("Failures") + "\n")
		for _, f := range r.Failures {
			b.WriteString(failStyle.Render("✗ "+f.Identifier) + labelStyle.Render(" at "+f.Step) + "\n")
		}
	}

	if r.Aborted {
		b.WriteString("\n" + failStyle.Bold(true).Render("Aborted: ") + r.AbortReason + "\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
