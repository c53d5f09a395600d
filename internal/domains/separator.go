package domains

import (
	"fmt"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/mesh"
)

type Separator struct {
	Nx    int
	Thick float64
	EpsEl float64
	PLiq  float64

	EpsS float64

	XMesh *mesh.Mesh
	Ptr   *mesh.Pointer
}

func NewSeparator(s config.Section) (*Separator, error) {
	var (
		sep Separator
		err error
	)
	if sep.Nx, err = s.Int("Nx"); err != nil {
		return nil, err
	}
	if sep.Thick, err = s.Float("thick"); err != nil {
		return nil, err
	}
	if sep.EpsEl, err = s.Float("eps_el"); err != nil {
		return nil, err
	}
	if sep.PLiq, err = s.Float("p_liq"); err != nil {
		return nil, err
	}
	return &sep, sep.Update()
}

func (sep *Separator) Update() error {
	if sep.EpsEl <= 0 || sep.EpsEl > 1 {
		return fmt.Errorf("%w: separator eps_el must be in (0, 1]", dynamo.ErrConfig)
	}
	sep.EpsS = 1 - sep.EpsEl
	return nil
}

// MakeMesh lays out ce and phie per cell, starting at ptrOffset, and
// returns the number of elements used.
func (sep *Separator) MakeMesh(xOffset float64, ptrOffset int) (int, error) {
	m, err := mesh.Uniform(sep.Thick, sep.Nx, xOffset)
	if err != nil {
		return 0, fmt.Errorf("separator: %w", err)
	}
	sep.XMesh = m

	sep.Ptr = mesh.NewPointer(ptrOffset, sep.Nx, 0, 2, 0)
	sep.Ptr.Add("ce", 0)
	sep.Ptr.Add("phie", 1)
	return sep.Ptr.Size(), nil
}

func (sep *Separator) InitialState(sv []float64, el *Electrolyte) {
	for i := 0; i < sep.Nx; i++ {
		sv[sep.Ptr.At("ce", i)] = el.Li0
		sv[sep.Ptr.At("phie", i)] = el.Phi0
	}
}

func (sep *Separator) AlgebraicIndices() []int {
	return sep.Ptr.X("phie")
}
