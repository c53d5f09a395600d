package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/integrators"
)

// DefaultTShift separates stitched steps in a CycleSolution [s].
const DefaultTShift = 1e-3

// Simulation owns the committed state (t0, y0, yp0) of a model between
// steps. It is not safe for concurrent use.
type Simulation struct {
	model Model
	base  integrators.Options
	log   logrus.FieldLogger

	homotopy int

	t0      float64
	y0, yp0 []float64
	steps   int

	metrics   []Metric
	observers []Observer
}

type Option func(*Simulation)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Simulation) { s.log = l }
}

// WithOptions sets the integrator options shared by every step.
// Tolerances and step limits in a Step override them.
func WithOptions(o integrators.Options) Option {
	return func(s *Simulation) { s.base = o }
}

// WithHomotopy retries failed voltage steps up to n times with the target
// ramped in from the present voltage.
func WithHomotopy(n int) Option {
	return func(s *Simulation) { s.homotopy = n }
}

func New(model Model, opts ...Option) (*Simulation, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", dynamo.ErrConfig)
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Simulation{
		model: model,
		base:  integrators.DefaultOptions(),
		log:   discard,
	}
	for _, o := range opts {
		o(s)
	}
	s.y0, s.yp0 = model.InitialState()
	if len(s.y0) != model.Size() {
		return nil, fmt.Errorf("%w: initial state has %d values for %d unknowns", dynamo.ErrDimensionMismatch, len(s.y0), model.Size())
	}
	return s, nil
}

func (s *Simulation) Model() Model { return s.model }

func (s *Simulation) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulation) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// State returns copies of the committed time and state.
func (s *Simulation) State() (t0 float64, y, yp []float64) {
	return s.t0, dynamo.State(s.y0).Clone(), dynamo.State(s.yp0).Clone()
}

// Reset rebuilds the model and returns to its rested initial condition.
func (s *Simulation) Reset() error {
	if err := s.model.Pre(); err != nil {
		return err
	}
	s.t0 = 0
	s.steps = 0
	s.y0, s.yp0 = s.model.InitialState()
	for _, m := range s.metrics {
		m.Reset()
	}
	return nil
}

// RunStep integrates one step from the committed state. The final state is
// committed unless the step fails. Integrator failures are returned as a
// *dynamo.SimulationError together with the partial solution.
func (s *Simulation) RunStep(ctx context.Context, step *Step) (*StepSolution, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}
	idx := s.steps
	s.steps++
	step.T0 = s.t0

	log := s.log.WithFields(logrus.Fields{"step": idx, "mode": step.BC.Kind()})
	log.WithField("status", Integrating).Debug(step.String())

	start := time.Now()
	sol, err := s.integrate(ctx, step)
	if err != nil && s.homotopy > 0 && !errors.Is(err, dynamo.ErrContextCanceled) {
		if _, ok := step.BC.(Voltage); ok {
			log.WithError(err).Info("voltage step failed, retrying with homotopy")
			sol, err = s.relax(ctx, step, err)
		}
	}
	if sol == nil {
		return nil, err
	}
	sol.Index = idx
	sol.Elapsed = time.Since(start)

	if err != nil {
		sol.Status = Failed
		log.WithFields(logrus.Fields{"status": sol.Status, "t": s.t0}).Warn(sol.Message)
		return sol, &dynamo.SimulationError{Step: idx, Time: s.t0, Status: sol.Status.String(), Wrapped: err}
	}

	if err := s.observe(step, sol); err != nil {
		sol.Status = Failed
		return sol, &dynamo.SimulationError{Step: idx, Time: s.t0, Status: sol.Status.String(), Wrapped: err}
	}

	last := len(sol.T) - 1
	s.t0 += sol.T[last]
	s.y0 = append([]float64(nil), sol.Y[last]...)
	s.yp0 = append([]float64(nil), sol.Yp[last]...)

	log.WithFields(logrus.Fields{
		"status": sol.Status,
		"t":      s.t0,
		"nsteps": sol.Stats.Steps,
	}).Debug(sol.Message)
	return sol, nil
}

// integrate runs the solver once without committing anything.
func (s *Simulation) integrate(ctx context.Context, step *Step) (*StepSolution, error) {
	res, err := s.model.Bind(step)
	if err != nil {
		return nil, err
	}

	opts := s.options(step)
	if len(step.Limits) > 0 {
		opts.EventCount = len(step.Limits)
		opts.Events = eventsFunc(res, step)
	}

	ida, err := integrators.NewIDA(s.model.Size(), res, opts)
	if err != nil {
		return nil, err
	}

	out, err := ida.Solve(ctx, step.TSpan.Samples(), s.y0, s.yp0)
	if out == nil {
		return nil, err
	}
	sol := newStepSolution(step, out)
	return sol, err
}

func (s *Simulation) options(step *Step) integrators.Options {
	o := s.base
	o.AlgebraicIdx = s.model.AlgebraicIndices()
	o.CalcInitCond = integrators.InitYp0
	if o.LinearSolver == "" || o.LinearSolver == integrators.LinearBand {
		o.LinearSolver = integrators.LinearBand
		o.LBand, o.UBand = s.model.Bandwidth()
	}
	if step.Solver.RTol > 0 {
		o.RTol = step.Solver.RTol
	}
	if step.Solver.ATol > 0 {
		o.ATol = step.Solver.ATol
	}
	if step.Solver.MaxStep > 0 {
		o.MaxStep = step.Solver.MaxStep
	}
	if step.Solver.InitialStep > 0 {
		o.InitialStep = step.Solver.InitialStep
	}
	if o.Logger == nil {
		o.Logger = s.log
	}
	return o
}

// eventsFunc evaluates the residual into scratch space so the step's
// observables match (t, y, yp), then compares them with the limits.
func eventsFunc(res integrators.ResidualFunc, step *Step) integrators.EventsFunc {
	var scratch []float64
	return func(t float64, y, yp, events []float64) error {
		if len(scratch) != len(y) {
			scratch = make([]float64, len(y))
		}
		if err := res(t, y, yp, scratch); err != nil {
			return err
		}
		for i, l := range step.Limits {
			v, err := step.Observables.Get(l.Name)
			if err != nil {
				return err
			}
			events[i] = v - l.Threshold
		}
		return nil
	}
}

// observe fills the observables of every sample and feeds metrics and
// observers.
func (s *Simulation) observe(step *Step, sol *StepSolution) error {
	res, err := s.model.Bind(step)
	if err != nil {
		return err
	}
	scratch := make([]float64, s.model.Size())
	sol.Observables = make([]Observables, len(sol.T))
	for k, t := range sol.T {
		if err := res(t, sol.Y[k], sol.Yp[k], scratch); err != nil {
			return fmt.Errorf("observables at t=%g: %w", t, err)
		}
		sol.Observables[k] = step.Observables
		for _, m := range s.metrics {
			m.Observe(step.Observables)
		}
		for _, o := range s.observers {
			o.OnSample(sol.Index, step.Observables)
		}
	}
	return nil
}

// RunOptions control Run.
type RunOptions struct {
	// ResetState returns the simulation to its rested state at the end.
	ResetState bool
	// TShift separates stitched steps [s].
	TShift float64
}

func DefaultRunOptions() RunOptions {
	return RunOptions{ResetState: true, TShift: DefaultTShift}
}

// Run executes steps in order, each starting from the state the previous
// one committed. It stops at the first failed step and returns the
// solution so far with the error. Experiment time restarts at zero
// afterwards.
func (s *Simulation) Run(ctx context.Context, steps []*Step, opts RunOptions) (*CycleSolution, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: experiment has no steps", dynamo.ErrConfig)
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	var (
		solns  []*StepSolution
		runErr error
	)
	for _, step := range steps {
		sol, err := s.RunStep(ctx, step)
		if sol != nil {
			solns = append(solns, sol)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	var cycle *CycleSolution
	if len(solns) > 0 {
		cycle = NewCycleSolution(opts.TShift, solns...)
		cycle.Metrics = make(map[string]float64, len(s.metrics))
		for _, m := range s.metrics {
			cycle.Metrics[m.Name()] = m.Value()
		}
	}

	s.t0 = 0
	s.steps = 0
	if opts.ResetState {
		if err := s.Reset(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return cycle, runErr
}
