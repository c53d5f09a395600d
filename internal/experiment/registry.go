package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/metrics"
	"github.com/san-kum/batsim/internal/p2d"
	"github.com/san-kum/batsim/internal/sim"
	"github.com/san-kum/batsim/internal/spm"
)

// Constructor builds a model from a parameter set.
type Constructor func(params config.Params) (sim.Model, error)

type Registry struct {
	models map[string]Constructor
}

// NewRegistry returns a registry with the built-in models.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Constructor)}

	r.Register("p2d", func(p config.Params) (sim.Model, error) {
		m, err := p2d.New(p)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	r.Register("spm", func(p config.Params) (sim.Model, error) {
		m, err := spm.New(p)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
	return r
}

// Register adds or replaces a model constructor.
func (r *Registry) Register(name string, fn Constructor) {
	r.models[name] = fn
}

func (r *Registry) NewModel(name string, params config.Params) (sim.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(params)
}

// NewPresetModel builds a model from one of its presets.
func (r *Registry) NewPresetModel(name, preset string) (sim.Model, error) {
	if _, ok := r.models[name]; !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	p, err := config.GetPreset(name, preset)
	if err != nil {
		return nil, err
	}
	return r.NewModel(name, p)
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the metrics every run records.
func (r *Registry) DefaultMetrics() []sim.Metric {
	return []sim.Metric{
		metrics.NewChargeThroughput(),
		metrics.NewNetCharge(),
		metrics.NewEnergy(),
		metrics.NewEnergyThroughput(),
		metrics.NewVoltageMin(),
		metrics.NewVoltageMax(),
		metrics.NewRMSCurrent(),
	}
}
