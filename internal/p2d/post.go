package p2d

import (
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/mesh"
	"github.com/san-kum/batsim/internal/sim"
)

// Post evaluates the residual at (t, y, yp) and returns the current
// balance profiles. The divergences vanish where the solution satisfies
// charge conservation.
func (m *Model) Post(step *sim.Step, t float64, y, yp []float64) (*sim.Profiles, error) {
	e, err := m.newEvaluator(step)
	if err != nil {
		return nil, err
	}
	if err := e.residual(t, y, yp, make([]float64, m.size)); err != nil {
		return nil, err
	}

	p := &sim.Profiles{
		SdotAn: append([]float64(nil), e.an.sdot...),
		SdotCa: append([]float64(nil), e.ca.sdot...),
		DivI:   make(map[string][]float64, 3),
	}

	for c := range e.ce {
		im, ip, _, _ := e.faces(c)
		w := m.x.Plus[c] - m.x.Minus[c]
		div := (ip - im) / w
		sum := ip

		region := "separator"
		if el := e.electrodeAt(c); el != nil {
			i := c - el.first
			div += (el.ipEd[i] - el.imEd[i]) / w
			sum += el.ipEd[i]
			region = el.ed.Name
		}
		p.DivI[region] = append(p.DivI[region], div)
		p.SumIp = append(p.SumIp, sum)
		p.IEl = append(p.IEl, im)
	}
	p.IEl = append(p.IEl, 0)

	p.FaradaicAn = faradaic(e.an) * m.Bat.Area
	p.FaradaicCa = faradaic(e.ca) * m.Bat.Area
	return p, nil
}

// faradaic integrates As*sdot*F over the electrode thickness [A/m2].
func faradaic(el *electrode) float64 {
	src := make([]float64, len(el.sdot))
	for i, s := range el.sdot {
		src[i] = el.ed.As * s * dynamo.F
	}
	return mesh.IntX(el.ed.XMesh.Minus, el.ed.XMesh.Plus, src)
}
