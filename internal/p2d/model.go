package p2d

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/domains"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/mesh"
)

// Model is the pseudo-2D cell: anode, separator and cathode on one axial
// mesh, with a spherical particle mesh in every electrode cell. The state
// vector holds the anode cells, then the separator cells, then the cathode
// cells.
type Model struct {
	Bat *domains.Battery
	El  *domains.Electrolyte
	An  *domains.Electrode
	Sep *domains.Separator
	Ca  *domains.Electrode

	size         int
	alg          []int
	lband, uband int
	y0           []float64

	// electrolyte mesh across all three regions
	x        *mesh.Mesh
	dxFace   []float64
	wtM, wtP []float64
	epsTau   []float64
	epsEl    []float64
}

// New builds the domains from params and runs Pre.
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
	if m.An, err = domains.NewElectrode(domains.Anode, s, true); err != nil {
		return nil, err
	}
	if s, err = params.Section("separator"); err != nil {
		return nil, err
	}
	if m.Sep, err = domains.NewSeparator(s); err != nil {
		return nil, err
	}
	if s, err = params.Section(domains.Cathode); err != nil {
		return nil, err
	}
	if m.Ca, err = domains.NewElectrode(domains.Cathode, s, true); err != nil {
		return nil, err
	}

	if err := m.Pre(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) Name() string { return "p2d" }

// Pre validates the domains, lays out the state vector and computes the
// rest state and the bandwidth.
func (m *Model) Pre() error {
	if err := m.Bat.Update(); err != nil {
		return err
	}
	if err := m.El.Update(); err != nil {
		return err
	}
	if !m.El.HasTransport() {
		return fmt.Errorf("%w: p2d needs an electrolyte material", dynamo.ErrConfig)
	}
	for _, ed := range []*domains.Electrode{m.An, m.Ca} {
		if err := ed.Update(); err != nil {
			return err
		}
		if ed.Nx < 2 || ed.Nr < 2 {
			return fmt.Errorf("%w: %s needs Nx >= 2 and Nr >= 2, got Nx=%d Nr=%d", dynamo.ErrConfig, ed.Name, ed.Nx, ed.Nr)
		}
	}
	if err := m.Sep.Update(); err != nil {
		return err
	}

	offset := 0
	n, err := m.An.MakeMesh(0, offset)
	if err != nil {
		return err
	}
	offset += n
	if n, err = m.Sep.MakeMesh(m.An.Thick, offset); err != nil {
		return err
	}
	offset += n
	if n, err = m.Ca.MakeMesh(m.An.Thick+m.Sep.Thick, offset); err != nil {
		return err
	}
	m.size = offset + n

	for _, p := range []*mesh.Pointer{m.An.Ptr, m.Sep.Ptr, m.Ca.Ptr} {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	m.buildElectrolyteMesh()

	xAn, xCa := m.An.X0, m.Ca.X0
	m.An.Phi0 = 0
	m.El.Phi0 = -m.An.Eeq(xAn)
	m.Ca.Phi0 = m.Ca.Eeq(xCa) - m.An.Eeq(xAn)

	m.y0 = make([]float64, m.size)
	m.An.InitialState(m.y0, m.El)
	m.Sep.InitialState(m.y0, m.El)
	m.Ca.InitialState(m.y0, m.El)

	m.alg = append(m.An.AlgebraicIndices(), m.Sep.AlgebraicIndices()...)
	m.alg = append(m.alg, m.Ca.AlgebraicIndices()...)
	sort.Ints(m.alg)

	m.lband, m.uband = StaticBandwidth(m.An, m.Ca)
	return nil
}

// StaticBandwidth bounds the Jacobian band from the cell strides. A row
// couples to its own cell and to the neighboring cells, never further
// than one electrode stride away.
func StaticBandwidth(an, ca *domains.Electrode) (lband, uband int) {
	b := max(an.Stride(), ca.Stride()) + 1
	return b, b
}

func (m *Model) buildElectrolyteMesh() {
	m.x = mesh.Concat(m.An.XMesh, m.Sep.XMesh, m.Ca.XMesh)
	m.wtM, m.wtP = m.x.Weights()
	m.dxFace = make([]float64, m.x.Len()-1)
	for i := range m.dxFace {
		m.dxFace[i] = m.x.Center[i+1] - m.x.Center[i]
	}

	m.epsTau = make([]float64, 0, m.x.Len())
	m.epsEl = make([]float64, 0, m.x.Len())
	regions := []struct {
		n          int
		epsEl, pLq float64
	}{
		{m.An.Nx, m.An.EpsEl, m.An.PLiq},
		{m.Sep.Nx, m.Sep.EpsEl, m.Sep.PLiq},
		{m.Ca.Nx, m.Ca.EpsEl, m.Ca.PLiq},
	}
	for _, r := range regions {
		tau := math.Pow(r.epsEl, r.pLq)
		for i := 0; i < r.n; i++ {
			m.epsTau = append(m.epsTau, tau)
			m.epsEl = append(m.epsEl, r.epsEl)
		}
	}
}

func (m *Model) Size() int { return m.size }

func (m *Model) InitialState() (y, yp []float64) {
	return append([]float64(nil), m.y0...), make([]float64, m.size)
}

func (m *Model) AlgebraicIndices() []int { return append([]int(nil), m.alg...) }

func (m *Model) Bandwidth() (lband, uband int) { return m.lband, m.uband }

func (m *Model) Battery() *domains.Battery { return m.Bat }

// Pointers returns the pointer table of every region in state order.
func (m *Model) Pointers() []*mesh.Pointer {
	return []*mesh.Pointer{m.An.Ptr, m.Sep.Ptr, m.Ca.Ptr}
}
