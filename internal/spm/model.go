package spm

import (
	"fmt"
	"sort"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/domains"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/mesh"
)

// Model is the single-particle cell: one particle per electrode and a
// lumped electrolyte at the rest concentration. The state vector holds
// the anode particle (center to surface), the anode potential, the
// electrolyte potential, the cathode potential and the cathode particle
// (surface to center), so both reaction sites sit next to phie.
type Model struct {
	Bat *domains.Battery
	El  *domains.Electrolyte
	An  *domains.Electrode
	Ca  *domains.Electrode

	size         int
	alg          []int
	lband, uband int
	y0           []float64
}

func New(params config.Params) (*Model, error) {
	m := &Model{}
	s, err := params.Section("battery")
	if err != nil {
		return nil, err
	}
	if m.Bat, err = domains.NewBattery(s); err != nil {
		return nil, err
	}
	if s, err = params.Section("electrolyte"); err != nil {
		return nil, err
	}
	if m.El, err = domains.NewElectrolyte(s); err != nil {
		return nil, err
	}
	if s, err = params.Section(domains.Anode); err != nil {
		return nil, err
	}
	if m.An, err = domains.NewElectrode(domains.Anode, s, false); err != nil {
		return nil, err
	}
	if s, err = params.Section(domains.Cathode); err != nil {
		return nil, err
	}
	if m.Ca, err = domains.NewElectrode(domains.Cathode, s, false); err != nil {
		return nil, err
	}

	if err := m.Pre(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) Name() string { return "spm" }

func (m *Model) Pre() error {
	if err := m.Bat.Update(); err != nil {
		return err
	}
	if err := m.El.Update(); err != nil {
		return err
	}
	for _, ed := range []*domains.Electrode{m.An, m.Ca} {
		if err := ed.Update(); err != nil {
			return err
		}
		if ed.Nr < 2 {
			return fmt.Errorf("%w: %s needs Nr >= 2, got %d", dynamo.ErrConfig, ed.Name, ed.Nr)
		}
	}

	offset := 0
	n, err := m.An.MakeParticleMesh(offset)
	if err != nil {
		return err
	}
	offset += n
	offset += m.El.MakeLumpedMesh(offset)
	if n, err = m.Ca.MakeParticleMesh(offset); err != nil {
		return err
	}
	m.size = offset + n

	for _, p := range m.Pointers() {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	m.An.Phi0 = 0
	m.El.Phi0 = -m.An.Eeq(m.An.X0)
	m.Ca.Phi0 = m.Ca.Eeq(m.Ca.X0) - m.An.Eeq(m.An.X0)

	m.y0 = make([]float64, m.size)
	m.An.InitialState(m.y0, m.El)
	m.y0[m.El.Ptr.Base("phie")] = m.El.Phi0
	m.Ca.InitialState(m.y0, m.El)

	m.alg = append(m.An.AlgebraicIndices(), m.El.Ptr.Base("phie"))
	m.alg = append(m.alg, m.Ca.AlgebraicIndices()...)
	sort.Ints(m.alg)

	m.lband, m.uband = StaticBandwidth(m.An, m.Ca)
	return nil
}

// StaticBandwidth covers the power closure, whose cathode potential row
// reaches back to the anode surface shell across phie and the extension
// states of both electrodes.
func StaticBandwidth(an, ca *domains.Electrode) (lband, uband int) {
	b := 3 + len(an.Extensions) + len(ca.Extensions)
	return b, b
}

func (m *Model) Size() int { return m.size }

func (m *Model) InitialState() (y, yp []float64) {
	return append([]float64(nil), m.y0...), make([]float64, m.size)
}

func (m *Model) AlgebraicIndices() []int { return append([]int(nil), m.alg...) }

func (m *Model) Bandwidth() (lband, uband int) { return m.lband, m.uband }

func (m *Model) Battery() *domains.Battery { return m.Bat }

func (m *Model) Pointers() []*mesh.Pointer {
	return []*mesh.Pointer{m.An.Ptr, m.El.Ptr, m.Ca.Ptr}
}
