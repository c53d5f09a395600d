package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

// Step modes.
const (
	CurrentA = "current_A"
	CurrentC = "current_C"
	VoltageV = "voltage_V"
	PowerW   = "power_W"
)

var Modes = []string{CurrentA, CurrentC, VoltageV, PowerW}

// StepConfig is one step as written in an experiment file. Value is a
// number or an expression in t.
type StepConfig struct {
	Mode   string            `yaml:"mode"`
	Value  any               `yaml:"value"`
	TSpan  sim.TSpan         `yaml:"tspan"`
	Limits []sim.Limit       `yaml:"limits,omitempty"`
	Solver sim.SolverOptions `yaml:"solver,omitempty"`
}

func (sc StepConfig) String() string {
	s := fmt.Sprintf("%s=%v for %gs every %gs", sc.Mode, sc.Value, sc.TSpan.Max, sc.TSpan.Dt)
	if len(sc.Limits) > 0 {
		parts := make([]string, len(sc.Limits))
		for i, l := range sc.Limits {
			parts[i] = l.String()
		}
		s += " until " + strings.Join(parts, " or ")
	}
	return s
}

// Config is an experiment file.
type Config struct {
	Name       string       `yaml:"name,omitempty"`
	Steps      []StepConfig `yaml:"steps"`
	TShift     *float64     `yaml:"t_shift,omitempty"`
	ResetState *bool        `yaml:"reset_state,omitempty"`
}

// Experiment is an ordered list of steps. It keeps step templates and
// hands out fresh copies, so one experiment can drive several runs.
type Experiment struct {
	Name    string
	configs []StepConfig
	steps   []*sim.Step
	run     sim.RunOptions
}

func New() *Experiment {
	return &Experiment{run: sim.DefaultRunOptions()}
}

// AddStep appends a step. value is a number, a numeric string, an
// expression in t, or a sim.TargetFunc.
func (e *Experiment) AddStep(mode string, value any, tspan sim.TSpan, limits ...sim.Limit) error {
	return e.Add(StepConfig{Mode: mode, Value: value, TSpan: tspan, Limits: limits})
}

// Add appends a step described by sc.
func (e *Experiment) Add(sc StepConfig) error {
	target, err := Target(sc.Value)
	if err != nil {
		return fmt.Errorf("step %d: %w", len(e.steps), err)
	}

	var bc sim.BoundaryCondition
	switch sc.Mode {
	case CurrentA:
		bc = sim.Current{Value: target, Units: sim.Amps}
	case CurrentC:
		bc = sim.Current{Value: target, Units: sim.CRate}
	case VoltageV:
		bc = sim.Voltage{Value: target}
	case PowerW:
		bc = sim.Power{Value: target}
	default:
		return fmt.Errorf("%w: step %d: unknown mode %q, want one of %v", dynamo.ErrConfig, len(e.steps), sc.Mode, Modes)
	}

	step := &sim.Step{
		BC:     bc,
		TSpan:  sc.TSpan,
		Limits: append([]sim.Limit(nil), sc.Limits...),
		Solver: sc.Solver,
	}
	if err := step.Validate(); err != nil {
		return fmt.Errorf("step %d: %w", len(e.steps), err)
	}
	e.configs = append(e.configs, sc)
	e.steps = append(e.steps, step)
	return nil
}

func (e *Experiment) Len() int { return len(e.steps) }

// Steps returns fresh copies of every step.
func (e *Experiment) Steps() []*sim.Step {
	out := make([]*sim.Step, len(e.steps))
	for i, s := range e.steps {
		out[i] = s.Clone()
	}
	return out
}

// Configs returns the step descriptions in order.
func (e *Experiment) Configs() []StepConfig {
	return append([]StepConfig(nil), e.configs...)
}

// RunOptions returns the stitching options of the experiment.
func (e *Experiment) RunOptions() sim.RunOptions { return e.run }

func (e *Experiment) SetRunOptions(o sim.RunOptions) { e.run = o }

// FromConfig builds an experiment from a decoded file.
func FromConfig(cfg Config) (*Experiment, error) {
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("%w: experiment has no steps", dynamo.ErrConfig)
	}
	e := New()
	e.Name = cfg.Name
	if cfg.TShift != nil {
		if *cfg.TShift < 0 {
			return nil, fmt.Errorf("%w: t_shift must not be negative", dynamo.ErrConfig)
		}
		e.run.TShift = *cfg.TShift
	}
	if cfg.ResetState != nil {
		e.run.ResetState = *cfg.ResetState
	}
	for _, sc := range cfg.Steps {
		if err := e.Add(sc); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Load reads a yaml experiment file.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfig, path, err)
	}
	if cfg.Name == "" {
		base := filepath.Base(path)
		cfg.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return FromConfig(cfg)
}

// Single builds a one-step experiment, as used by the CLI flags.
func Single(mode string, value any, tspan sim.TSpan, limits ...sim.Limit) (*Experiment, error) {
	e := New()
	if err := e.AddStep(mode, value, tspan, limits...); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseLimit reads "name=threshold".
func ParseLimit(s string) (sim.Limit, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return sim.Limit{}, fmt.Errorf("%w: limit %q is not name=threshold", dynamo.ErrConfig, s)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return sim.Limit{}, fmt.Errorf("%w: limit %q: %v", dynamo.ErrConfig, s, err)
	}
	l := sim.Limit{Name: strings.TrimSpace(name), Threshold: f}
	return l, l.Validate()
}
