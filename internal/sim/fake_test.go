package sim_test

import (
	"errors"
	"math"

	"github.com/san-kum/batsim/internal/domains"
	"github.com/san-kum/batsim/internal/integrators"
	"github.com/san-kum/batsim/internal/sim"
)

var errPowerLimit = errors.New("fake cell cannot hold power")

// fakeCell is a linear cell with state [charge Ah, voltage V, current A]:
//
//	q' = i/3600
//	v  = ocv + k*q + r*i
//
// The third row closes the system.
type fakeCell struct {
	ocv, k, r float64
	bat       domains.Battery

	// slew limits how fast a voltage target may move away from ocv [V/s].
	slew float64
	// powerFailAfter makes power steps fail after this many seconds.
	powerFailAfter float64

	pre int
}

func newFakeCell() *fakeCell {
	return &fakeCell{
		ocv: 3.5, k: 0.5, r: 0.05,
		bat:            domains.Battery{Cap: 1, Temp: 298.15, Area: 0.1},
		powerFailAfter: 2,
	}
}

func (f *fakeCell) Name() string { return "fake" }
func (f *fakeCell) Pre() error   { f.pre++; return nil }
func (f *fakeCell) Size() int    { return 3 }

func (f *fakeCell) InitialState() (y, yp []float64) {
	return []float64{0, f.ocv, 0}, make([]float64, 3)
}

func (f *fakeCell) AlgebraicIndices() []int       { return []int{1, 2} }
func (f *fakeCell) Bandwidth() (lband, uband int) { return 2, 2 }
func (f *fakeCell) Battery() *domains.Battery     { return &f.bat }

func (f *fakeCell) Bind(step *sim.Step) (integrators.ResidualFunc, error) {
	c, err := sim.Resolve(step.BC, f.bat.Cap)
	if err != nil {
		return nil, err
	}
	_, voltage := step.BC.(sim.Voltage)
	_, power := step.BC.(sim.Power)

	return func(t float64, y, yp, res []float64) error {
		q, v, i := y[0], y[1], y[2]
		if power && t > f.powerFailAfter {
			return errPowerLimit
		}
		if voltage && f.slew > 0 && t > 0 {
			target := v - c.Residual(t, v, i)
			if math.Abs(target-f.ocv) > f.slew*t+1e-12 {
				return errors.New("voltage target moves too fast")
			}
		}

		res[0] = yp[0] - i/3600
		res[1] = v - (f.ocv + f.k*q + f.r*i)
		if c.Imposed() {
			res[2] = i - c.Current(t)
		} else {
			res[2] = c.Residual(t, v, i)
		}
		step.Observables = sim.NewObservables(step.T0+t, i, v, f.bat.Cap)
		return nil
	}, nil
}

type sampleCounter struct{ n float64 }

func (c *sampleCounter) Name() string            { return "samples" }
func (c *sampleCounter) Observe(sim.Observables) { c.n++ }
func (c *sampleCounter) Value() float64          { return c.n }
func (c *sampleCounter) Reset()                  { c.n = 0 }

type stepRecorder struct{ steps []int }

func (r *stepRecorder) OnSample(step int, _ sim.Observables) { r.steps = append(r.steps, step) }

func amps(v float64) sim.BoundaryCondition {
	return sim.Current{Value: sim.Constant(v), Units: sim.Amps}
}

func newStep(bc sim.BoundaryCondition, tmax, dt float64, limits ...sim.Limit) *sim.Step {
	return &sim.Step{BC: bc, TSpan: sim.TSpan{Max: tmax, Dt: dt}, Limits: limits}
}
