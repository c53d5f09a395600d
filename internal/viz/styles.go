package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/batsim/internal/sim"
)

// Shared styles. SetTheme rebuilds them.
var (
	Title       lipgloss.Style
	Subtle      lipgloss.Style
	MetricLabel lipgloss.Style
	MetricValue lipgloss.Style
	Panel       lipgloss.Style

	statusOK     lipgloss.Style
	statusEvent  lipgloss.Style
	statusFailed lipgloss.Style

	barHigh lipgloss.Style
	barMid  lipgloss.Style
	barLow  lipgloss.Style
)

func init() {
	applyTheme(CurrentTheme)
}

func applyTheme(t Theme) {
	Title = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	Subtle = lipgloss.NewStyle().Foreground(t.Muted)
	MetricLabel = lipgloss.NewStyle().Foreground(t.Muted).Width(24)
	MetricValue = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(0, 1)

	statusOK = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	statusEvent = lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)
	statusFailed = lipgloss.NewStyle().Bold(true).Foreground(t.Error)

	barHigh = lipgloss.NewStyle().Foreground(t.Success)
	barMid = lipgloss.NewStyle().Foreground(t.Warning)
	barLow = lipgloss.NewStyle().Foreground(t.Error)
}

// StatusText renders a step status in its color.
func StatusText(s sim.Status) string {
	return statusStyle(s.String()).Render(s.String())
}

// ProgressBar renders a bar for a fraction in [0, 1].
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if fraction > 0.8 {
		return barHigh.Render(bar)
	} else if fraction > 0.4 {
		return barMid.Render(bar)
	}
	return barLow.Render(bar)
}

// Sparkline renders the last width values as block characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / span * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		b.WriteRune(chars[idx])
	}
	return MetricValue.Render(b.String())
}

// Metric renders one "label value" line.
func Metric(label string, value float64, unit string) string {
	return MetricLabel.Render(label) + MetricValue.Render(fmt.Sprintf("%.6g %s", value, unit))
}
