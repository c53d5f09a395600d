package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/batsim/internal/storage"
)

// Summary renders a run's steps and metrics.
func Summary(meta *storage.RunMetadata) string {
	var b strings.Builder

	head := meta.Model
	if meta.Preset != "" {
		head += " / " + meta.Preset
	}
	if meta.ID != "" {
		head += "  " + Subtle.Render(meta.ID)
	}
	b.WriteString(Title.Render(head) + "\n\n")

	cell := lipgloss.NewStyle().PaddingRight(2)
	rows := [][]string{{"#", "step", "status", "duration", "samples", "events"}}
	for _, s := range meta.Steps {
		events := strings.Join(s.Events, " ")
		if s.Homotopy > 0 {
			events = strings.TrimSpace(events + fmt.Sprintf(" homotopy=%d", s.Homotopy))
		}
		rows = append(rows, []string{
			fmt.Sprint(s.Index),
			s.Description,
			s.Status,
			fmt.Sprintf("%.1fs", s.Duration),
			fmt.Sprint(s.Samples),
			events,
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for j, c := range row {
			widths[j] = max(widths[j], lipgloss.Width(c))
		}
	}
	for i, row := range rows {
		cols := make([]string, len(row))
		for j, c := range row {
			style := cell.Width(widths[j] + 2)
			switch {
			case i == 0:
				style = style.Inherit(Subtle)
			case j == 2:
				style = style.Inherit(statusStyle(c))
			}
			cols[j] = style.Render(c)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n")
	}

	if len(meta.Metrics) > 0 {
		b.WriteString("\n")
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(MetricLabel.Render(name) + MetricValue.Render(fmt.Sprintf("%.6g", meta.Metrics[name])) + "\n")
		}
	}
	return Panel.Render(strings.TrimRight(b.String(), "\n"))
}

func statusStyle(s string) lipgloss.Style {
	switch s {
	case "COMPLETED":
		return statusOK
	case "TERMINATED_ON_EVENT":
		return statusEvent
	case "FAILED":
		return statusFailed
	}
	return Subtle
}
