package metrics

import (
	"math"

	"github.com/san-kum/batsim/internal/sim"
)

// ChargeThroughput is the charge moved in either direction [Ah].
type ChargeThroughput struct {
	name string
	in   integrator
}

func NewChargeThroughput() *ChargeThroughput {
	return &ChargeThroughput{name: "charge_throughput_Ah"}
}

func (c *ChargeThroughput) Name() string { return c.name }

func (c *ChargeThroughput) Observe(obs sim.Observables) {
	c.in.add(obs.TimeS, math.Abs(obs.CurrentA))
}

func (c *ChargeThroughput) Value() float64 { return c.in.sum / 3600 }

func (c *ChargeThroughput) Reset() { c.in.reset() }

// NetCharge is the charge stored in the cell since the first sample [Ah].
type NetCharge struct {
	name string
	in   integrator
}

func NewNetCharge() *NetCharge {
	return &NetCharge{name: "net_charge_Ah"}
}

func (c *NetCharge) Name() string { return c.name }

func (c *NetCharge) Observe(obs sim.Observables) {
	c.in.add(obs.TimeS, obs.CurrentA)
}

func (c *NetCharge) Value() float64 { return c.in.sum / 3600 }

func (c *NetCharge) Reset() { c.in.reset() }
