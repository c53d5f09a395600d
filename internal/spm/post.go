package spm

import (
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

// Post returns the reaction rates and the integrated reaction currents.
func (m *Model) Post(step *sim.Step, t float64, y, yp []float64) (*sim.Profiles, error) {
	e, err := m.newEvaluator(step)
	if err != nil {
		return nil, err
	}
	if err := e.residual(t, y, yp, make([]float64, m.size)); err != nil {
		return nil, err
	}
	return &sim.Profiles{
		SdotAn:     []float64{e.sdotAn},
		SdotCa:     []float64{e.sdotCa},
		FaradaicAn: e.sdotAn * m.An.As * m.An.Thick * dynamo.F * m.Bat.Area,
		FaradaicCa: e.sdotCa * m.Ca.As * m.Ca.Thick * dynamo.F * m.Bat.Area,
	}, nil
}
