package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/batsim/internal/sim"
	"github.com/san-kum/batsim/internal/viz"
)

const historyCapacity = 600

var (
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

type sampleMsg struct {
	step int
	obs  sim.Observables
}

type doneMsg struct {
	cycle *sim.CycleSolution
	err   error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// model shows the progress of one experiment. Samples arrive once a step
// has been integrated.
type model struct {
	title string
	steps []string

	completed int
	samples   int
	last      sim.Observables
	volts     []float64

	cycle *sim.CycleSolution
	err   error
	done  bool

	cancel func()
	start  time.Time
	frame  int
	width  int
}

func newModel(title string, steps []string, cancel func()) model {
	return model{
		title:  title,
		steps:  steps,
		cancel: cancel,
		start:  time.Now(),
		width:  80,
		volts:  make([]float64, 0, historyCapacity),
	}
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case sampleMsg:
		m.samples++
		m.last = msg.obs
		m.completed = max(m.completed, msg.step)
		if len(m.volts) == historyCapacity {
			m.volts = m.volts[1:]
		}
		m.volts = append(m.volts, msg.obs.VoltageV)
		return m, nil
	case doneMsg:
		m.done = true
		m.cycle = msg.cycle
		m.err = msg.err
		if msg.cycle != nil {
			m.completed = len(msg.cycle.Steps)
		}
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m model) stepMark(i int) string {
	switch {
	case m.done && m.cycle != nil && i < len(m.cycle.Steps):
		return viz.StatusText(m.cycle.Steps[i].Status)
	case i < m.completed:
		return green.Render("done")
	case i == m.completed && !m.done:
		spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		return yellow.Render(spinners[m.frame%len(spinners)])
	}
	return dim.Render("·")
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + viz.Title.Render(m.title) + "\n\n")
	for i, s := range m.steps {
		b.WriteString(fmt.Sprintf("  %-3d %s  %s\n", i, white.Render(s), m.stepMark(i)))
	}

	frac := 0.0
	if len(m.steps) > 0 {
		frac = float64(m.completed) / float64(len(m.steps))
	}
	barWidth := max(10, min(m.width-20, 50))
	b.WriteString("\n  " + viz.ProgressBar(frac, barWidth) + dim.Render(fmt.Sprintf(" %d/%d", m.completed, len(m.steps))) + "\n\n")

	if m.samples > 0 {
		b.WriteString("  " + viz.Metric("time", m.last.TimeS, "s") + "\n")
		b.WriteString("  " + viz.Metric("voltage", m.last.VoltageV, "V") + "\n")
		b.WriteString("  " + viz.Metric("current", m.last.CurrentA, "A") + "\n")
		b.WriteString("  " + viz.Metric("power", m.last.PowerW, "W") + "\n")
		b.WriteString("  " + viz.Sparkline(m.volts, barWidth) + "\n")
	}

	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	switch {
	case m.err != nil:
		b.WriteString("\n  " + red.Render(m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n  " + green.Render(fmt.Sprintf("finished in %s", elapsed)) + "\n")
	default:
		b.WriteString("\n  " + dim.Render(fmt.Sprintf("%s elapsed   q cancel", elapsed)) + "\n")
	}
	return b.String()
}
