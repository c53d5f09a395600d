package metrics

import (
	"math"

	"github.com/san-kum/batsim/internal/sim"
)

// RMSCurrent is the root mean square of the sampled current [A].
type RMSCurrent struct {
	name    string
	sum     float64
	samples int
}

func NewRMSCurrent() *RMSCurrent {
	return &RMSCurrent{
		name: "rms_current_A",
	}
}

func (c *RMSCurrent) Name() string {
	return c.name
}

func (c *RMSCurrent) Observe(obs sim.Observables) {
	c.sum += obs.CurrentA * obs.CurrentA
	c.samples++
}

func (c *RMSCurrent) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sum / float64(c.samples))
}

func (c *RMSCurrent) Reset() {
	c.sum = 0
	c.samples = 0
}
