package integrators

import (
	"io"

	"github.com/sirupsen/logrus"
)

// ResidualFunc evaluates F(t, y, yp) into res. A returned error is treated
// as recoverable: the step is retried with a smaller step size.
type ResidualFunc func(t float64, y, yp, res []float64) error

// EventsFunc evaluates the root functions into events.
type EventsFunc func(t float64, y, yp, events []float64) error

const (
	LinearBand  = "band"
	LinearDense = "dense"

	InitYp0  = "yp0"
	InitY0   = "y0"
	InitNone = ""
)

// Options configures the IDA solver. Start from DefaultOptions; zero
// tolerances and step controls are filled with defaults but booleans are
// taken as given.
type Options struct {
	RTol float64
	ATol float64

	InitialStep float64
	MaxStep     float64
	MinStep     float64
	MaxSteps    int
	MaxNewton   int

	LinearSolver string
	LBand        int
	UBand        int

	// AlgebraicIdx lists the rows without a time derivative.
	AlgebraicIdx      []int
	CalcInitCond      string
	SuppressAlgebraic bool

	EventCount int
	Events     EventsFunc

	Logger logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		RTol:              1e-6,
		ATol:              1e-9,
		MinStep:           1e-12,
		MaxSteps:          50000,
		MaxNewton:         4,
		LinearSolver:      LinearBand,
		CalcInitCond:      InitYp0,
		SuppressAlgebraic: true,
	}
}

func (o Options) withDefaults(n int) Options {
	d := DefaultOptions()
	if o.RTol <= 0 {
		o.RTol = d.RTol
	}
	if o.ATol <= 0 {
		o.ATol = d.ATol
	}
	if o.MinStep <= 0 {
		o.MinStep = d.MinStep
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = d.MaxSteps
	}
	if o.MaxNewton <= 0 {
		o.MaxNewton = d.MaxNewton
	}
	if o.LinearSolver == "" {
		o.LinearSolver = d.LinearSolver
	}
	if o.LinearSolver == LinearBand {
		if o.LBand <= 0 && o.UBand <= 0 {
			o.LBand, o.UBand = n-1, n-1
		}
		o.LBand = min(max(o.LBand, 0), n-1)
		o.UBand = min(max(o.UBand, 0), n-1)
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	return o
}

// Result status codes.
const (
	StatusSuccess = 0
	StatusRoot    = 2
	StatusFailed  = -1
)

type Stats struct {
	Steps         int
	Rejected      int
	NewtonFails   int
	ResidualEvals int
	JacobianEvals int
}

// Result holds the solution at the requested output times. When an event
// stops the integration, the event point is the last sample.
type Result struct {
	T       []float64
	Y       [][]float64
	Yp      [][]float64
	Success bool
	Status  int
	Message string

	// Roots is set when an event terminated the integration.
	Roots *Roots
	Stats Stats
}

// Roots describes the event crossing that ended an integration.
type Roots struct {
	T     float64
	Y     []float64
	Yp    []float64
	Index []int
}

func (r *Result) append(t float64, y, yp []float64) {
	r.T = append(r.T, t)
	r.Y = append(r.Y, append([]float64(nil), y...))
	r.Yp = append(r.Yp, append([]float64(nil), yp...))
}
