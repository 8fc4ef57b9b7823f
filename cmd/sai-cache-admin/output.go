package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/saiset-co/sai-cache-admin/poller"
	"github.com/saiset-co/sai-cache-admin/render"
	"github.com/saiset-co/sai-cache-admin/utils"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorError   = lipgloss.Color("#E74C3C")
	colorBorder  = lipgloss.Color("#16858E")
	colorMuted   = lipgloss.Color("#6C7A80")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Label   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
	Label:   lipgloss.NewStyle().Width(20),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1),
}

// formatResult renders a flush outcome box: banner, totals, then the
// per-backend breakdowns.
func formatResult(model *render.DisplayModel) string {
	var lines []string

	if model.Banner.Success {
		lines = append(lines, styles.Success.Render(model.Banner.Text))
	} else {
		lines = append(lines, styles.Error.Render(model.Banner.Text))
	}

	lines = append(lines, model.Lines...)

	for _, b := range model.Breakdowns {
		lines = append(lines, "", styles.Title.Render(b.Title))
		for _, row := range b.Rows {
			lines = append(lines, "  "+styles.Label.Render(row.Backend)+row.Value)
		}
	}

	return styles.Box.Render(strings.Join(lines, "\n"))
}

// formatDisplay renders the metrics panel. The last good counters stay on
// screen under an error line when the latest poll failed.
func formatDisplay(state poller.DisplayState) string {
	var sections []string

	if state.ErrorVisible {
		sections = append(sections, styles.Error.Render("Error loading metrics: "+state.ErrorMessage))
	}

	if state.MetricsVisible || state.Snapshot != nil {
		for _, view := range state.Families() {
			rows := []string{
				styles.Title.Render(view.Title),
				styles.Label.Render("Successful flushes") + view.OperationsSuccess,
				styles.Label.Render("Failed flushes") + view.OperationsFailure,
				styles.Label.Render("Entries removed") + view.EntriesRemoved,
			}
			if view.BytesReclaimed != "" {
				rows = append(rows, styles.Label.Render("Bytes reclaimed")+view.BytesReclaimed)
			}
			sections = append(sections, styles.Box.Render(strings.Join(rows, "\n")))
		}
	}

	if !state.UpdatedAt.IsZero() {
		sections = append(sections, styles.Muted.Render("Updated "+state.UpdatedAt.Format("15:04:05")))
	}

	return strings.Join(sections, "\n")
}

func writeJSON(w io.Writer, value interface{}) error {
	data, err := utils.Marshal(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
