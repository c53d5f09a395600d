package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/dynamo"
)

// TargetFunc maps time since the start of a step [s] to a boundary target.
type TargetFunc func(t float64) float64

// Constant returns a target that ignores time.
func Constant(v float64) TargetFunc {
	return func(float64) float64 { return v }
}

// Units of a current boundary condition.
type Units string

const (
	Amps  Units = "A"
	CRate Units = "C"
)

// BoundaryCondition closes the system at the cathode current collector.
// It is one of Current, Voltage or Power.
type BoundaryCondition interface {
	Kind() string
	Target(t float64) float64
	boundary()
}

// Current holds the external current. Positive values charge the cell.
type Current struct {
	Value TargetFunc
	Units Units
}

// Voltage holds the terminal voltage [V].
type Voltage struct {
	Value TargetFunc
}

// Power holds the terminal power [W]. Positive values charge the cell.
type Power struct {
	Value TargetFunc
}

func (Current) Kind() string { return "current" }
func (Voltage) Kind() string { return "voltage" }
func (Power) Kind() string   { return "power" }

func (c Current) Target(t float64) float64 { return c.Value(t) }
func (v Voltage) Target(t float64) float64 { return v.Value(t) }
func (p Power) Target(t float64) float64   { return p.Value(t) }

func (Current) boundary() {}
func (Voltage) boundary() {}
func (Power) boundary()   {}

// Amperes converts the target to amperes for a cell of the given
// capacity [Ah].
func (c Current) Amperes(t, capacity float64) float64 {
	if c.Units == CRate {
		return c.Value(t) * capacity
	}
	return c.Value(t)
}

// TSpan is a step duration sampled every Dt seconds.
type TSpan struct {
	Max float64 `yaml:"max"`
	Dt  float64 `yaml:"dt"`
}

func (ts TSpan) Validate() error {
	if ts.Max <= 0 || ts.Dt <= 0 {
		return fmt.Errorf("%w: tspan max and dt must be positive, got (%g, %g)", dynamo.ErrConfig, ts.Max, ts.Dt)
	}
	if ts.Dt > ts.Max {
		return fmt.Errorf("%w: tspan dt %g exceeds max %g", dynamo.ErrConfig, ts.Dt, ts.Max)
	}
	return nil
}

// Samples returns 0, Dt, 2*Dt, ... up to and including Max.
func (ts TSpan) Samples() []float64 {
	n := int(math.Floor(ts.Max/ts.Dt + 1e-9))
	out := make([]float64, 0, n+2)
	for i := 0; i <= n; i++ {
		out = append(out, float64(i)*ts.Dt)
	}
	if last := out[len(out)-1]; ts.Max-last > 1e-9*ts.Max {
		out = append(out, ts.Max)
	} else {
		out[len(out)-1] = ts.Max
	}
	return out
}

// Observable names available to limits.
const (
	TimeS    = "time_s"
	TimeMin  = "time_min"
	TimeH    = "time_h"
	CurrentA = "current_A"
	CurrentC = "current_C"
	VoltageV = "voltage_V"
	PowerW   = "power_W"
)

// ObservableNames lists every observable in publishing order.
var ObservableNames = []string{TimeS, TimeMin, TimeH, CurrentA, CurrentC, VoltageV, PowerW}

// Observables are the derived quantities a residual evaluation publishes.
// Current and power are positive on charge.
type Observables struct {
	TimeS    float64
	TimeMin  float64
	TimeH    float64
	CurrentA float64
	CurrentC float64
	VoltageV float64
	PowerW   float64
}

// NewObservables fills the time and capacity-scaled fields.
func NewObservables(t, currentA, voltageV, capacity float64) Observables {
	return Observables{
		TimeS:    t,
		TimeMin:  t / 60,
		TimeH:    t / 3600,
		CurrentA: currentA,
		CurrentC: currentA / capacity,
		VoltageV: voltageV,
		PowerW:   currentA * voltageV,
	}
}

func (o Observables) Get(name string) (float64, error) {
	switch name {
	case TimeS:
		return o.TimeS, nil
	case TimeMin:
		return o.TimeMin, nil
	case TimeH:
		return o.TimeH, nil
	case CurrentA:
		return o.CurrentA, nil
	case CurrentC:
		return o.CurrentC, nil
	case VoltageV:
		return o.VoltageV, nil
	case PowerW:
		return o.PowerW, nil
	}
	return 0, fmt.Errorf("%w: %s", dynamo.ErrUnknownObservable, name)
}

// Values returns the observables in ObservableNames order.
func (o Observables) Values() []float64 {
	return []float64{o.TimeS, o.TimeMin, o.TimeH, o.CurrentA, o.CurrentC, o.VoltageV, o.PowerW}
}

// Limit ends a step early when the named observable crosses Threshold.
type Limit struct {
	Name      string  `yaml:"name"`
	Threshold float64 `yaml:"threshold"`
}

func (l Limit) Validate() error {
	_, err := Observables{}.Get(l.Name)
	return err
}

func (l Limit) String() string { return fmt.Sprintf("%s=%g", l.Name, l.Threshold) }

// SolverOptions override the simulation-wide integrator settings for one
// step. Zero values keep the defaults.
type SolverOptions struct {
	RTol        float64 `yaml:"rtol"`
	ATol        float64 `yaml:"atol"`
	MaxStep     float64 `yaml:"max_step"`
	InitialStep float64 `yaml:"initial_step"`
}

// Step describes one experimental step. The residual of the step writes
// Observables on every evaluation, so a Step must not be shared between
// concurrent runs.
type Step struct {
	BC     BoundaryCondition
	TSpan  TSpan
	Limits []Limit
	Solver SolverOptions

	// T0 is the experiment time when the step starts, set by the stepper.
	T0 float64

	Observables Observables
}

func (s *Step) Validate() error {
	if s.BC == nil {
		return fmt.Errorf("%w: step has no boundary condition", dynamo.ErrConfig)
	}
	if err := s.TSpan.Validate(); err != nil {
		return err
	}
	for _, l := range s.Limits {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy with fresh published observables.
func (s *Step) Clone() *Step {
	c := *s
	c.Limits = append([]Limit(nil), s.Limits...)
	c.Observables = Observables{}
	return &c
}

func (s *Step) String() string {
	return fmt.Sprintf("%s for %gs (dt %gs, limits %v)", s.BC.Kind(), s.TSpan.Max, s.TSpan.Dt, s.Limits)
}

// Closure is a boundary condition resolved for one step. In current mode
// the external current is imposed directly; otherwise one potential row is
// replaced by the voltage or power constraint.
type Closure struct {
	current func(t float64) float64
	row     func(t, volts, amps float64) float64
}

// Resolve dispatches bc once. capacity [Ah] scales C-rate currents.
func Resolve(bc BoundaryCondition, capacity float64) (Closure, error) {
	switch bc := bc.(type) {
	case Current:
		if bc.Value == nil {
			break
		}
		if bc.Units != Amps && bc.Units != CRate {
			return Closure{}, fmt.Errorf("%w: unknown current units %q", dynamo.ErrConfig, bc.Units)
		}
		return Closure{current: func(t float64) float64 { return bc.Amperes(t, capacity) }}, nil
	case Voltage:
		if bc.Value == nil {
			break
		}
		return Closure{row: func(t, volts, _ float64) float64 { return volts - bc.Value(t) }}, nil
	case Power:
		if bc.Value == nil {
			break
		}
		return Closure{row: func(t, volts, amps float64) float64 { return amps*volts - bc.Value(t) }}, nil
	default:
		return Closure{}, fmt.Errorf("%w: unsupported boundary condition %T", dynamo.ErrConfig, bc)
	}
	return Closure{}, fmt.Errorf("%w: %s boundary condition has no target", dynamo.ErrConfig, bc.Kind())
}

// Imposed reports whether the external current is prescribed.
func (c Closure) Imposed() bool { return c.current != nil }

// Current returns the prescribed current [A], positive on charge.
func (c Closure) Current(t float64) float64 { return c.current(t) }

// Residual is the replacement row for voltage and power modes.
func (c Closure) Residual(t, volts, amps float64) float64 { return c.row(t, volts, amps) }
