package metrics

import (
	"github.com/san-kum/batsim/internal/sim"
)

// integrator accumulates the trapezoid integral of one observable over the
// experiment clock. Samples that do not advance time add nothing, so the
// repeated sample at a step boundary is harmless.
type integrator struct {
	prevT, prevF float64
	started      bool
	sum          float64
}

func (in *integrator) add(t, f float64) {
	if in.started && t > in.prevT {
		in.sum += 0.5 * (f + in.prevF) * (t - in.prevT)
	}
	in.prevT, in.prevF = t, f
	in.started = true
}

func (in *integrator) reset() { *in = integrator{} }

// Energy is the net energy delivered to the cell [Wh]. It is negative
// over a discharge.
type Energy struct {
	name string
	in   integrator
}

func NewEnergy() *Energy {
	return &Energy{name: "energy_Wh"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(obs sim.Observables) {
	e.in.add(obs.TimeS, obs.PowerW)
}

func (e *Energy) Value() float64 { return e.in.sum / 3600 }

func (e *Energy) Reset() { e.in.reset() }

// EnergyThroughput is the energy moved in either direction [Wh].
type EnergyThroughput struct {
	name string
	in   integrator
}

func NewEnergyThroughput() *EnergyThroughput {
	return &EnergyThroughput{name: "energy_throughput_Wh"}
}

func (e *EnergyThroughput) Name() string { return e.name }

func (e *EnergyThroughput) Observe(obs sim.Observables) {
	p := obs.PowerW
	if p < 0 {
		p = -p
	}
	e.in.add(obs.TimeS, p)
}

func (e *EnergyThroughput) Value() float64 { return e.in.sum / 3600 }

func (e *EnergyThroughput) Reset() { e.in.reset() }
