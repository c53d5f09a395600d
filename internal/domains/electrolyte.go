package domains

import (
	"fmt"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/materials"
	"github.com/san-kum/batsim/internal/mesh"
)

// Electrolyte holds the liquid-phase parameters. The transport material is
// optional; the single-particle model only needs the initial concentration.
type Electrolyte struct {
	Li0      float64
	DDeg     float64
	T0Deg    float64
	KappaDeg float64
	GammaDeg float64
	Material string

	// Phi0 is the initial potential, set by the model.
	Phi0 float64

	// Ptr is only used by models that carry a lumped electrolyte potential.
	Ptr *mesh.Pointer

	material materials.ElectrolyteMaterial
}

func NewElectrolyte(s config.Section) (*Electrolyte, error) {
	var (
		el  Electrolyte
		err error
	)
	if el.Li0, err = s.Float("Li_0"); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*float64{
		"D_deg":     &el.DDeg,
		"t0_deg":    &el.T0Deg,
		"kappa_deg": &el.KappaDeg,
		"gamma_deg": &el.GammaDeg,
	} {
		if *dst, err = s.FloatOr(key, 1); err != nil {
			return nil, err
		}
	}
	if s.Has("material") {
		if el.Material, err = s.String("material"); err != nil {
			return nil, err
		}
	}
	return &el, el.Update()
}

// Update resolves the transport material once.
func (el *Electrolyte) Update() error {
	if el.Li0 <= 0 {
		return fmt.Errorf("%w: electrolyte Li_0 must be positive", dynamo.ErrConfig)
	}
	el.material = nil
	if el.Material == "" {
		return nil
	}
	m, err := materials.NewElectrolyte(el.Material)
	if err != nil {
		return err
	}
	el.material = m
	return nil
}

// HasTransport reports whether a transport material is configured.
func (el *Electrolyte) HasTransport() bool { return el.material != nil }

func (el *Electrolyte) D(c, T float64) float64     { return el.DDeg * el.material.D(c, T) }
func (el *Electrolyte) T0(c, T float64) float64    { return el.T0Deg * el.material.T0(c, T) }
func (el *Electrolyte) Kappa(c, T float64) float64 { return el.KappaDeg * el.material.Kappa(c, T) }
func (el *Electrolyte) Gamma(c, T float64) float64 { return el.GammaDeg * el.material.Gamma(c, T) }

// MakeLumpedMesh registers a single electrolyte potential at ptrOffset and
// returns the number of elements used.
func (el *Electrolyte) MakeLumpedMesh(ptrOffset int) int {
	el.Ptr = mesh.NewPointer(ptrOffset, 1, 0, 1, 0)
	el.Ptr.Add("phie", 0)
	return el.Ptr.Size()
}
