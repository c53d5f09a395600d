package p2d

import (
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/domains"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/integrators"
	"github.com/san-kum/batsim/internal/mesh"
	"github.com/san-kum/batsim/internal/sim"
)

// electrode holds the per-evaluation quantities of one electrode.
type electrode struct {
	ed    *domains.Electrode
	first int // first cell on the electrolyte mesh

	phis []float64
	sdot []float64
	ipEd []float64 // solid current at plus faces
	imEd []float64 // solid current at minus faces
	dir  []float64
}

func newElectrode(ed *domains.Electrode, first int) *electrode {
	return &electrode{
		ed:    ed,
		first: first,
		phis:  make([]float64, ed.Nx),
		sdot:  make([]float64, ed.Nx),
		ipEd:  make([]float64, ed.Nx),
		imEd:  make([]float64, ed.Nx),
		dir:   make([]float64, ed.Nx),
	}
}

// evaluator is the residual of one step. It keeps the intermediate fluxes
// of the last evaluation for post-processing.
type evaluator struct {
	m       *Model
	step    *sim.Step
	closure sim.Closure

	ce, phie, lnce    []float64
	d, t0, gam, kap   []float64
	t0b, gamb         []float64
	ipIO, npIO        []float64
	an, ca            *electrode
	iExt, amps, volts float64
}

// Bind resolves the boundary condition of step and returns its residual.
func (m *Model) Bind(step *sim.Step) (integrators.ResidualFunc, error) {
	e, err := m.newEvaluator(step)
	if err != nil {
		return nil, err
	}
	return e.residual, nil
}

func (m *Model) newEvaluator(step *sim.Step) (*evaluator, error) {
	if m.x == nil {
		return nil, fmt.Errorf("%w: p2d model used before Pre", dynamo.ErrConfig)
	}
	c, err := sim.Resolve(step.BC, m.Bat.Cap)
	if err != nil {
		return nil, err
	}
	n := m.x.Len()
	buf := func(k int) []float64 { return make([]float64, k) }
	return &evaluator{
		m:       m,
		step:    step,
		closure: c,
		ce:      buf(n), phie: buf(n), lnce: buf(n),
		d: buf(n), t0: buf(n), gam: buf(n), kap: buf(n),
		t0b: buf(n + 1), gamb: buf(n + 1),
		ipIO: buf(n - 1), npIO: buf(n - 1),
		an: newElectrode(m.An, 0),
		ca: newElectrode(m.Ca, m.An.Nx+m.Sep.Nx),
	}, nil
}

// cellIndex returns the ce and phie rows of electrolyte cell c.
func (e *evaluator) cellIndex(c int) (ce, phie int) {
	m := e.m
	switch {
	case c < m.An.Nx:
		return m.An.Ptr.At("ce", c), m.An.Ptr.At("phie", c)
	case c < m.An.Nx+m.Sep.Nx:
		c -= m.An.Nx
		return m.Sep.Ptr.At("ce", c), m.Sep.Ptr.At("phie", c)
	default:
		c -= m.An.Nx + m.Sep.Nx
		return m.Ca.Ptr.At("ce", c), m.Ca.Ptr.At("phie", c)
	}
}

func (e *evaluator) residual(t float64, y, yp, res []float64) error {
	m := e.m
	T := m.Bat.Temp

	e.transport(y, T)
	for _, el := range []*electrode{e.an, e.ca} {
		if err := e.kinetics(el, y, T); err != nil {
			return err
		}
	}
	e.boundary(t)

	for _, el := range []*electrode{e.an, e.ca} {
		for i := 0; i < el.ed.Nx; i++ {
			el.ed.ParticleResidual(res, y, yp, i, el.sdot[i], el.dir[i], T)
		}
		e.solid(el, res)
		el.ed.ExtensionResidual(res, y, yp, el.sdot, m.Bat)
	}
	e.electrolyte(yp, res)

	// reference potential and boundary closure
	res[m.An.Ptr.At("phis", 0)] = e.an.phis[0]
	if !e.closure.Imposed() {
		res[m.Ca.Ptr.At("phis", m.Ca.Nx-1)] = e.closure.Residual(t, e.volts, e.amps)
	}

	e.step.Observables = sim.NewObservables(e.step.T0+t, e.amps, e.volts, m.Bat.Cap)
	return nil
}

// transport computes the ionic current and molar flux at every interior
// face of the electrolyte mesh.
func (e *evaluator) transport(y []float64, T float64) {
	m := e.m
	n := len(e.ce)
	for c := 0; c < n; c++ {
		ic, ip := e.cellIndex(c)
		e.ce[c], e.phie[c] = y[ic], y[ip]
		e.lnce[c] = math.Log(e.ce[c])
		e.d[c] = m.El.D(e.ce[c], T)
		e.t0[c] = m.El.T0(e.ce[c], T)
		e.gam[c] = m.El.Gamma(e.ce[c], T)
		e.kap[c] = m.El.Kappa(e.ce[c], T)
	}

	e.t0b[0], e.t0b[n] = e.t0[0], e.t0[n-1]
	e.gamb[0], e.gamb[n] = e.gam[0], e.gam[n-1]

	rt := 2 * dynamo.R * T / dynamo.F
	for f := 0; f < n-1; f++ {
		wm, wp := m.wtM[f], m.wtP[f]
		dEff := wm*e.d[f]*m.epsTau[f] + wp*e.d[f+1]*m.epsTau[f+1]
		kEff := wm*e.kap[f]*m.epsTau[f] + wp*e.kap[f+1]*m.epsTau[f+1]
		e.t0b[f+1] = wm*e.t0[f] + wp*e.t0[f+1]
		e.gamb[f+1] = wm*e.gam[f] + wp*e.gam[f+1]

		dx := m.dxFace[f]
		e.ipIO[f] = -kEff*(e.phie[f+1]-e.phie[f])/dx -
			kEff*rt*(1+e.gamb[f+1])*(e.t0b[f+1]-1)*(e.lnce[f+1]-e.lnce[f])/dx
		e.npIO[f] = dEff * (e.ce[f+1] - e.ce[f]) / dx
	}
}

// kinetics evaluates the Butler-Volmer production rate in every cell.
func (e *evaluator) kinetics(el *electrode, y []float64, T float64) error {
	ed := el.ed
	surf := ed.SurfaceShell()
	for i := 0; i < ed.Nx; i++ {
		el.phis[i] = y[ed.Ptr.At("phis", i)]
		xSurf := y[ed.Ptr.Shell("xs", i, surf)]
		c := el.first + i

		eta := el.phis[i] - e.phie[c] - (ed.Eeq(xSurf) + ed.VoltageShift(y, i, xSurf))
		el.dir[i] = domains.FluxDirection(eta)

		i0, err := ed.I0(xSurf, e.ce[c], T, el.dir[i])
		if err != nil {
			return err
		}
		el.sdot[i] = ed.ButlerVolmer(i0, eta, T)
	}
	return nil
}

// boundary sets the external current density (positive toward +x at the
// anode collector), the terminal current and the voltage.
func (e *evaluator) boundary(t float64) {
	m := e.m
	ca := e.ca
	last := m.Ca.Nx - 1
	e.volts = ca.phis[last]

	if e.closure.Imposed() {
		e.amps = e.closure.Current(t)
		e.iExt = -e.amps / m.Bat.Area
		return
	}

	xm := m.Ca.XMesh
	w := xm.Plus[last] - xm.Minus[last]
	e.iExt = -ca.sdot[last]*m.Ca.As*dynamo.F*w -
		m.Ca.SigmaEff()*(ca.phis[last]-ca.phis[last-1])/(xm.Center[last]-xm.Center[last-1])
	e.amps = -e.iExt * m.Bat.Area
}

// solid fills the charge conservation rows of the solid phase. The anode
// takes the external current at x = 0, the cathode at its far end.
func (e *evaluator) solid(el *electrode, res []float64) {
	ed := el.ed
	xm := ed.XMesh
	sigma := ed.SigmaEff()

	grad := mesh.Grad(xm.Center, el.phis)
	for k, g := range grad {
		el.ipEd[k] = -sigma * g
		el.imEd[k+1] = el.ipEd[k]
	}
	if ed.Name == domains.Anode {
		el.imEd[0] = e.iExt
		el.ipEd[ed.Nx-1] = 0
	} else {
		el.imEd[0] = 0
		el.ipEd[ed.Nx-1] = e.iExt
	}

	for i := 0; i < ed.Nx; i++ {
		w := xm.Plus[i] - xm.Minus[i]
		res[ed.Ptr.At("phis", i)] = (el.ipEd[i]-el.imEd[i])/w + ed.As*el.sdot[i]*dynamo.F
	}
}

// faces returns the ionic current and molar flux at both faces of
// electrolyte cell c, with no flux through the collectors.
func (e *evaluator) faces(c int) (im, ip, nm, np float64) {
	if c > 0 {
		im, nm = e.ipIO[c-1], e.npIO[c-1]
	}
	if c < len(e.ce)-1 {
		ip, np = e.ipIO[c], e.npIO[c]
	}
	return im, ip, nm, np
}

// electrolyte fills the mass and charge conservation rows of the liquid
// phase in all three regions.
func (e *evaluator) electrolyte(yp, res []float64) {
	m := e.m
	for c := range e.ce {
		im, ip, nm, np := e.faces(c)
		w := m.x.Plus[c] - m.x.Minus[c]

		source := 0.0
		if el := e.electrodeAt(c); el != nil {
			source = el.ed.As * el.sdot[c-el.first]
		}

		ic, iphi := e.cellIndex(c)
		res[ic] = m.epsEl[c]*yp[ic] -
			(np-nm-(ip*e.t0b[c+1]-im*e.t0b[c])/dynamo.F)/w - source
		res[iphi] = (ip-im)/w - source*dynamo.F
	}
}

func (e *evaluator) electrodeAt(c int) *electrode {
	switch {
	case c < e.m.An.Nx:
		return e.an
	case c >= e.ca.first:
		return e.ca
	}
	return nil
}
