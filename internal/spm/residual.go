package spm

import (
	"fmt"

	"github.com/san-kum/batsim/internal/domains"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/integrators"
	"github.com/san-kum/batsim/internal/sim"
)

// evaluator is the residual of one step.
type evaluator struct {
	m       *Model
	step    *sim.Step
	closure sim.Closure

	sdotAn, sdotCa float64
	amps, volts    float64
}

func (m *Model) Bind(step *sim.Step) (integrators.ResidualFunc, error) {
	e, err := m.newEvaluator(step)
	if err != nil {
		return nil, err
	}
	return e.residual, nil
}

func (m *Model) newEvaluator(step *sim.Step) (*evaluator, error) {
	if m.El.Ptr == nil {
		return nil, fmt.Errorf("%w: spm model used before Pre", dynamo.ErrConfig)
	}
	c, err := sim.Resolve(step.BC, m.Bat.Cap)
	if err != nil {
		return nil, err
	}
	return &evaluator{m: m, step: step, closure: c}, nil
}

// reaction returns sdot and the flux direction of a single particle.
func (e *evaluator) reaction(ed *domains.Electrode, y []float64, phie, T float64) (sdot, dir float64, err error) {
	phis := y[ed.Ptr.At("phis", 0)]
	xSurf := y[ed.Ptr.Shell("xs", 0, ed.SurfaceShell())]

	eta := phis - phie - (ed.Eeq(xSurf) + ed.VoltageShift(y, 0, xSurf))
	dir = domains.FluxDirection(eta)

	i0, err := ed.I0(xSurf, e.m.El.Li0, T, dir)
	if err != nil {
		return 0, 0, err
	}
	return ed.ButlerVolmer(i0, eta, T), dir, nil
}

func (e *evaluator) residual(t float64, y, yp, res []float64) error {
	m := e.m
	T := m.Bat.Temp
	iPhie := m.El.Ptr.Base("phie")
	iPhiAn := m.An.Ptr.At("phis", 0)
	iPhiCa := m.Ca.Ptr.At("phis", 0)
	phie := y[iPhie]

	sdotAn, dirAn, err := e.reaction(m.An, y, phie, T)
	if err != nil {
		return err
	}
	sdotCa, dirCa, err := e.reaction(m.Ca, y, phie, T)
	if err != nil {
		return err
	}
	e.sdotAn, e.sdotCa = sdotAn, sdotCa

	m.An.ParticleResidual(res, y, yp, 0, sdotAn, dirAn, T)
	m.Ca.ParticleResidual(res, y, yp, 0, sdotCa, dirCa, T)
	m.An.ExtensionResidual(res, y, yp, []float64{sdotAn}, m.Bat)
	m.Ca.ExtensionResidual(res, y, yp, []float64{sdotCa}, m.Bat)

	res[iPhiAn] = y[iPhiAn]

	// reaction currents per unit cell area [A/m2]
	qAn := sdotAn * m.An.As * m.An.Thick * dynamo.F
	qCa := sdotCa * m.Ca.As * m.Ca.Thick * dynamo.F

	e.volts = y[iPhiCa]
	if e.closure.Imposed() {
		e.amps = e.closure.Current(t)
		iDis := -e.amps / m.Bat.Area
		res[iPhiCa] = qCa + iDis
		res[iPhie] = qAn - iDis
	} else {
		e.amps = -qAn * m.Bat.Area
		res[iPhiCa] = e.closure.Residual(t, e.volts, e.amps)
		res[iPhie] = (qAn + qCa) / dynamo.F
	}

	e.step.Observables = sim.NewObservables(e.step.T0+t, e.amps, e.volts, m.Bat.Cap)
	return nil
}
