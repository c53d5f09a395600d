package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/batsim/internal/sim"
)

// Observer forwards samples to a running program.
type Observer struct {
	p *tea.Program
}

func (o *Observer) OnSample(step int, obs sim.Observables) {
	o.p.Send(sampleMsg{step: step, obs: obs})
}

// RunFunc runs an experiment and reports every sample to obs.
type RunFunc func(ctx context.Context, obs sim.Observer) (*sim.CycleSolution, error)

// Run shows live progress while run executes. Quitting the view cancels
// the context passed to run. The run's result is returned once it ends.
func Run(ctx context.Context, title string, steps []string, run RunFunc, opts ...tea.ProgramOption) (*sim.CycleSolution, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, steps, cancel), opts...)

	type result struct {
		cycle *sim.CycleSolution
		err   error
	}
	out := make(chan result, 1)
	go func() {
		cycle, err := run(ctx, &Observer{p: p})
		out <- result{cycle, err}
		p.Send(doneMsg{cycle: cycle, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-out
		return nil, err
	}
	r := <-out
	return r.cycle, r.err
}
