package domains

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cast"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/materials"
	"github.com/san-kum/batsim/internal/mesh"
)

const (
	Anode   = "anode"
	Cathode = "cathode"
)

// Electrode is a porous electrode made of spherical active particles.
type Electrode struct {
	Name   string
	Nx     int
	Nr     int
	Thick  float64 // [m]
	Rs     float64 // particle radius [m]
	EpsS   float64
	EpsEl  float64
	EpsCBD float64
	PSol   float64
	PLiq   float64
	AlphaA float64
	AlphaC float64
	LiMax  float64 // [kmol/m3]
	X0     float64
	I0Deg  float64
	DsDeg  float64

	Material   string
	Extensions []Extension

	// Phi0 is the initial solid potential, set by the model.
	Phi0 float64

	// derived in Update
	EpsVoid float64
	EpsAM   float64
	SigmaS  float64
	As      float64

	XMesh *mesh.Mesh
	RMesh *mesh.Mesh
	Ptr   *mesh.Pointer

	material materials.ElectrodeMaterial
	radial   *radialScratch
}

// radialScratch holds the face weights of the radial mesh and the work
// arrays of ParticleResidual.
type radialScratch struct {
	wtM, wtP []float64
	xs, li   []float64
	grad     []float64
	flux     []float64
	div      []float64
}

func newRadialScratch(rm *mesh.Mesh) *radialScratch {
	n := rm.Len()
	wtM, wtP := rm.Weights()
	return &radialScratch{
		wtM: wtM, wtP: wtP,
		xs:   make([]float64, n),
		li:   make([]float64, n),
		grad: make([]float64, n-1),
		flux: make([]float64, n+1),
		div:  make([]float64, n),
	}
}

// NewElectrode reads an electrode section. Spatial electrodes (P2D) also
// need an axial mesh size and Bruggeman exponents.
func NewElectrode(name string, s config.Section, spatial bool) (*Electrode, error) {
	if name != Anode && name != Cathode {
		return nil, fmt.Errorf("%w: electrode name must be %q or %q, got %q", dynamo.ErrConfig, Anode, Cathode, name)
	}

	ed := &Electrode{Name: name, Nx: 1}
	var err error

	if ed.Nr, err = s.Int("Nr"); err != nil {
		return nil, err
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"thick", &ed.Thick},
		{"R_s", &ed.Rs},
		{"eps_s", &ed.EpsS},
		{"eps_el", &ed.EpsEl},
		{"eps_CBD", &ed.EpsCBD},
		{"alpha_a", &ed.AlphaA},
		{"alpha_c", &ed.AlphaC},
		{"Li_max", &ed.LiMax},
		{"x_0", &ed.X0},
	}
	for _, f := range floats {
		if *f.dst, err = s.Float(f.key); err != nil {
			return nil, err
		}
	}
	if ed.I0Deg, err = s.FloatOr("i0_deg", 1); err != nil {
		return nil, err
	}
	if ed.DsDeg, err = s.FloatOr("Ds_deg", 1); err != nil {
		return nil, err
	}
	if ed.Material, err = s.String("material"); err != nil {
		return nil, err
	}

	if spatial {
		if ed.Nx, err = s.Int("Nx"); err != nil {
			return nil, err
		}
		if ed.PSol, err = s.Float("p_sol"); err != nil {
			return nil, err
		}
		if ed.PLiq, err = s.Float("p_liq"); err != nil {
			return nil, err
		}
	}

	if err := ed.Update(); err != nil {
		return nil, err
	}

	exts, ok, err := s.Map("extensions")
	if err != nil {
		return nil, err
	}
	if ok {
		names := make([]string, 0, len(exts))
		for n := range exts {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			opts, err := cast.ToStringMapE(exts[n])
			if err != nil {
				return nil, fmt.Errorf("%w: %s.extensions.%s is not a mapping", dynamo.ErrConfig, name, n)
			}
			ext, err := NewExtension(n, config.NewSection(name+"."+n, opts))
			if err != nil {
				return nil, err
			}
			if err := ed.AddExtension(ext); err != nil {
				return nil, err
			}
		}
	}

	return ed, nil
}

// Update recomputes derived properties and resolves the material.
func (ed *Electrode) Update() error {
	if ed.Nr <= 0 || ed.Nx <= 0 {
		return fmt.Errorf("%w: %s mesh sizes must be positive", dynamo.ErrConfig, ed.Name)
	}
	if ed.Thick <= 0 || ed.Rs <= 0 {
		return fmt.Errorf("%w: %s thick and R_s must be positive", dynamo.ErrConfig, ed.Name)
	}

	ed.EpsVoid = 1 - ed.EpsS - ed.EpsEl
	ed.EpsAM = ed.EpsS - ed.EpsCBD
	ed.SigmaS = 10 * ed.EpsS
	ed.As = 3 * ed.EpsAM / ed.Rs

	if ed.EpsVoid < 0 {
		return fmt.Errorf("%w: %s eps_s + eps_el > 1", dynamo.ErrConfig, ed.Name)
	}

	m, err := materials.NewElectrode(ed.Material, ed.AlphaA, ed.AlphaC, ed.LiMax)
	if err != nil {
		return err
	}
	ed.material = m
	return nil
}

// AddExtension attaches an extension. It must happen before the mesh is
// built.
func (ed *Electrode) AddExtension(ext Extension) error {
	for _, e := range ed.Extensions {
		if e.Name() == ext.Name() {
			return fmt.Errorf("%w: %s already has extension %q", dynamo.ErrConfig, ed.Name, ext.Name())
		}
	}
	if err := ext.Attach(ed); err != nil {
		return err
	}
	ed.Extensions = append(ed.Extensions, ext)
	return nil
}

func (ed *Electrode) Ds(x, T, fluxdir float64) float64 {
	return ed.DsDeg * ed.material.Ds(x, T, fluxdir)
}

func (ed *Electrode) I0(x, cLi, T, fluxdir float64) (float64, error) {
	i0, err := ed.material.I0(x, cLi, T, fluxdir)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ed.Name, err)
	}
	return ed.I0Deg * i0, nil
}

func (ed *Electrode) Eeq(x float64) float64 {
	return ed.material.Eeq(x)
}

// Mhyst returns zero for materials without hysteresis.
func (ed *Electrode) Mhyst(x float64) float64 {
	if h, ok := ed.material.(materials.Hysteretic); ok {
		return h.Mhyst(x)
	}
	return 0
}

// MaterialModel exposes the resolved material for capability checks.
func (ed *Electrode) MaterialModel() materials.ElectrodeMaterial { return ed.material }

// SigmaEff is the effective solid conductivity [S/m].
func (ed *Electrode) SigmaEff() float64 {
	return ed.SigmaS * math.Pow(ed.EpsS, ed.PSol)
}

// Stride is the number of state elements per axial cell.
func (ed *Electrode) Stride() int {
	return ed.Nr + 3 + len(ed.Extensions)
}

// ButlerVolmer returns the Li+ production rate [kmol/m2/s] for the given
// exchange current density and overpotential.
func (ed *Electrode) ButlerVolmer(i0, eta, T float64) float64 {
	f := dynamo.F / (dynamo.R * T)
	return i0 / dynamo.F * (math.Exp(ed.AlphaA*f*eta) - math.Exp(-ed.AlphaC*f*eta))
}

// MakeMesh builds the axial and radial meshes and the per-cell layout
// xs[0..Nr), phis, ce, phie, extensions. It returns the number of state
// elements used so the caller can offset the next domain.
func (ed *Electrode) MakeMesh(xOffset float64, ptrOffset int) (int, error) {
	xm, err := mesh.Uniform(ed.Thick, ed.Nx, xOffset)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ed.Name, err)
	}
	rm, err := mesh.Uniform(ed.Rs, ed.Nr, 0)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ed.Name, err)
	}
	ed.XMesh, ed.RMesh = xm, rm
	ed.radial = newRadialScratch(rm)

	p := mesh.NewPointer(ptrOffset, ed.Nx, ed.Nr, ed.Stride(), 1)
	p.AddShells("xs", 0)
	p.Add("phis", ed.Nr)
	p.Add("ce", ed.Nr+1)
	p.Add("phie", ed.Nr+2)
	for k, ext := range ed.Extensions {
		p.Add(ext.Name(), ed.Nr+3+k)
	}
	ed.Ptr = p
	return p.Size(), nil
}

// MakeParticleMesh builds the single-particle layout. The anode stores
// xs center to surface, then phis, then extensions. The cathode stores
// extensions, phis, then xs surface to center, so both surfaces sit next
// to their potentials and the electrolyte potential between them.
func (ed *Electrode) MakeParticleMesh(ptrOffset int) (int, error) {
	rm, err := mesh.Uniform(ed.Rs, ed.Nr, 0)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", ed.Name, err)
	}
	ed.RMesh = rm
	ed.radial = newRadialScratch(rm)

	next := len(ed.Extensions)
	size := ed.Nr + 1 + next

	if ed.Name == Anode {
		p := mesh.NewPointer(ptrOffset, 1, ed.Nr, size, 1)
		p.AddShells("xs", 0)
		p.Add("phis", ed.Nr)
		for k, ext := range ed.Extensions {
			p.Add(ext.Name(), ed.Nr+1+k)
		}
		ed.Ptr = p
		return size, nil
	}

	p := mesh.NewPointer(ptrOffset, 1, ed.Nr, size, -1)
	for k, ext := range ed.Extensions {
		p.Add(ext.Name(), k)
	}
	p.Add("phis", next)
	p.AddShells("xs", size-1)
	ed.Ptr = p
	return size, nil
}

// InitialState writes the rest state of the electrode into sv.
func (ed *Electrode) InitialState(sv []float64, el *Electrolyte) {
	for i := 0; i < ed.Nx; i++ {
		for j := 0; j < ed.Nr; j++ {
			sv[ed.Ptr.Shell("xs", i, j)] = ed.X0
		}
		sv[ed.Ptr.At("phis", i)] = ed.Phi0
		if ed.Ptr.Has("ce") {
			sv[ed.Ptr.At("ce", i)] = el.Li0
			sv[ed.Ptr.At("phie", i)] = el.Phi0
		}
		for _, ext := range ed.Extensions {
			sv[ed.Ptr.At(ext.Name(), i)] = ext.InitialValue()
		}
	}
}

// AlgebraicIndices returns the sorted potential rows of the electrode.
// Extensions are differential and add none.
func (ed *Electrode) AlgebraicIndices() []int {
	idx := ed.Ptr.X("phis")
	if ed.Ptr.Has("phie") {
		idx = append(idx, ed.Ptr.X("phie")...)
	}
	sort.Ints(idx)
	return idx
}

// SurfaceShell is the radial index of the particle surface.
func (ed *Electrode) SurfaceShell() int { return ed.Nr - 1 }

// VoltageShift sums the extension contributions to the equilibrium
// potential of cell i.
func (ed *Electrode) VoltageShift(y []float64, i int, xSurf float64) float64 {
	shift := 0.0
	for _, ext := range ed.Extensions {
		shift += ext.VoltageShift(xSurf, y[ed.Ptr.At(ext.Name(), i)])
	}
	return shift
}

// ExtensionResidual fills the rows of every extension.
func (ed *Electrode) ExtensionResidual(res, y, yp, sdot []float64, bat *Battery) {
	for _, ext := range ed.Extensions {
		ext.Residual(res, y, yp, ed.Ptr.X(ext.Name()), sdot, bat)
	}
}

// ParticleResidual fills the radial diffusion rows of cell i. The center
// has no flux and the surface flux is the reaction rate sdot.
func (ed *Electrode) ParticleResidual(res, y, yp []float64, i int, sdot, dir, T float64) {
	r, sc := ed.RMesh, ed.radial
	for j := range sc.xs {
		sc.xs[j] = y[ed.Ptr.Shell("xs", i, j)]
		sc.li[j] = sc.xs[j] * ed.LiMax
	}

	sc.flux[0] = 0
	for j, g := range mesh.GradInto(sc.grad, r.Center, sc.li) {
		ds := sc.wtM[j]*ed.Ds(sc.xs[j], T, dir) + sc.wtP[j]*ed.Ds(sc.xs[j+1], T, dir)
		sc.flux[j+1] = ds * g
	}
	sc.flux[ed.Nr] = -sdot

	for j, d := range mesh.DivRInto(sc.div, r.Minus, r.Plus, sc.flux) {
		k := ed.Ptr.Shell("xs", i, j)
		res[k] = ed.LiMax*yp[k] - d
	}
}

// FluxDirection is +1 while lithiating (eta < 0), -1 while delithiating
// and 0 at equilibrium.
func FluxDirection(eta float64) float64 {
	switch {
	case eta > 0:
		return -1
	case eta < 0:
		return 1
	}
	return 0
}
