package metrics

import (
	"math"

	"github.com/san-kum/batsim/internal/sim"
)

// VoltageWindow is the fraction of samples whose voltage lies inside
// [min, max].
type VoltageWindow struct {
	name       string
	min, max   float64
	violations int
	samples    int
}

func NewVoltageWindow(min, max float64) *VoltageWindow {
	return &VoltageWindow{
		name: "voltage_window",
		min:  min,
		max:  max,
	}
}

func (w *VoltageWindow) Name() string {
	return w.name
}

func (w *VoltageWindow) Observe(obs sim.Observables) {
	w.samples++
	if obs.VoltageV < w.min || obs.VoltageV > w.max {
		w.violations++
	}
}

func (w *VoltageWindow) Value() float64 {
	if w.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(w.violations)/float64(w.samples)
}

func (w *VoltageWindow) Reset() {
	w.violations = 0
	w.samples = 0
}

// VoltageExtreme tracks the lowest or highest sampled voltage [V].
type VoltageExtreme struct {
	name  string
	pick  func(a, b float64) float64
	value float64
	seen  bool
}

func NewVoltageMin() *VoltageExtreme {
	return &VoltageExtreme{name: "voltage_min_V", pick: math.Min}
}

func NewVoltageMax() *VoltageExtreme {
	return &VoltageExtreme{name: "voltage_max_V", pick: math.Max}
}

func (v *VoltageExtreme) Name() string { return v.name }

func (v *VoltageExtreme) Observe(obs sim.Observables) {
	if !v.seen {
		v.value, v.seen = obs.VoltageV, true
		return
	}
	v.value = v.pick(v.value, obs.VoltageV)
}

func (v *VoltageExtreme) Value() float64 { return v.value }

func (v *VoltageExtreme) Reset() {
	v.value = 0
	v.seen = false
}
