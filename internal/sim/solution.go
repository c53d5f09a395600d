package sim

import (
	"time"

	"github.com/san-kum/batsim/internal/integrators"
)

// Event is the limit crossing that ended a step.
type Event struct {
	T      float64
	Y, Yp  []float64
	Limits []Limit
}

// StepSolution is the result of one step. T is measured from the start of
// the step.
type StepSolution struct {
	Index   int
	Step    *Step
	Status  Status
	Success bool
	Message string

	T           []float64
	Y, Yp       [][]float64
	Observables []Observables

	Event    *Event
	Homotopy int
	Stats    integrators.Stats
	Elapsed  time.Duration
}

func newStepSolution(step *Step, r *integrators.Result) *StepSolution {
	sol := &StepSolution{
		Step:    step,
		Status:  Failed,
		Success: r.Success,
		Message: r.Message,
		T:       r.T,
		Y:       r.Y,
		Yp:      r.Yp,
		Stats:   r.Stats,
	}
	switch {
	case r.Status == integrators.StatusRoot && r.Roots != nil:
		sol.Status = TerminatedOnEvent
		ev := &Event{T: r.Roots.T, Y: r.Roots.Y, Yp: r.Roots.Yp}
		for _, i := range r.Roots.Index {
			ev.Limits = append(ev.Limits, step.Limits[i])
		}
		sol.Event = ev
	case r.Success:
		sol.Status = Completed
	}
	return sol
}

// Final returns the observables at the last sample.
func (s *StepSolution) Final() Observables {
	if len(s.Observables) == 0 {
		return Observables{}
	}
	return s.Observables[len(s.Observables)-1]
}

// CycleSolution stitches step solutions into one time axis. Every step
// after the first starts TShift seconds after the end of the previous one.
type CycleSolution struct {
	Steps []*StepSolution

	T           []float64
	Y, Yp       [][]float64
	Observables []Observables

	// StepIndex maps every sample to the step that produced it.
	StepIndex []int
	Metrics   map[string]float64
}

func NewCycleSolution(tShift float64, solns ...*StepSolution) *CycleSolution {
	c := &CycleSolution{Steps: solns}
	offset := 0.0
	for k, s := range solns {
		if k > 0 && len(c.T) > 0 {
			offset = c.T[len(c.T)-1] + tShift
		}
		for i, t := range s.T {
			c.T = append(c.T, offset+t)
			c.Y = append(c.Y, s.Y[i])
			c.Yp = append(c.Yp, s.Yp[i])
			c.StepIndex = append(c.StepIndex, k)
			if i < len(s.Observables) {
				c.Observables = append(c.Observables, s.Observables[i])
			}
		}
	}
	return c
}

// Statuses returns the status of every step.
func (c *CycleSolution) Statuses() []Status {
	out := make([]Status, len(c.Steps))
	for i, s := range c.Steps {
		out[i] = s.Status
	}
	return out
}

func (c *CycleSolution) Success() bool {
	for _, s := range c.Steps {
		if !s.Status.Done() {
			return false
		}
	}
	return len(c.Steps) > 0
}

func (c *CycleSolution) Elapsed() time.Duration {
	var d time.Duration
	for _, s := range c.Steps {
		d += s.Elapsed
	}
	return d
}

// Series returns one observable over the stitched samples.
func (c *CycleSolution) Series(name string) ([]float64, error) {
	out := make([]float64, len(c.Observables))
	for i, o := range c.Observables {
		v, err := o.Get(name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
