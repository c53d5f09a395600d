package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/batsim/internal/dynamo"
)

// Mesh is a one-dimensional finite-volume discretization. Center[i] lies
// strictly between Minus[i] and Plus[i], and Plus[i] == Minus[i+1].
type Mesh struct {
	Minus  []float64
	Plus   []float64
	Center []float64
}

// Uniform builds n equal control volumes spanning [offset, offset+length].
// The same builder serves Cartesian (thickness) and spherical (radius) axes.
func Uniform(length float64, n int, offset float64) (*Mesh, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: mesh needs at least one cell, got %d", dynamo.ErrConfig, n)
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: mesh length must be non-negative, got %g", dynamo.ErrConfig, length)
	}

	faces := make([]float64, n+1)
	floats.Span(faces, offset, offset+length)
	faces[0] = offset
	faces[n] = offset + length

	m := &Mesh{
		Minus:  make([]float64, n),
		Plus:   make([]float64, n),
		Center: make([]float64, n),
	}
	copy(m.Minus, faces[:n])
	copy(m.Plus, faces[1:])
	for i := range m.Center {
		m.Center[i] = 0.5 * (m.Minus[i] + m.Plus[i])
	}

	return m, nil
}

// Len returns the number of control volumes.
func (m *Mesh) Len() int { return len(m.Center) }

// Length returns the distance between the first minus face and the last
// plus face.
func (m *Mesh) Length() float64 {
	if m.Len() == 0 {
		return 0
	}
	return m.Plus[m.Len()-1] - m.Minus[0]
}

// Widths returns Plus[i] - Minus[i] for every volume.
func (m *Mesh) Widths() []float64 {
	w := make([]float64, m.Len())
	floats.SubTo(w, m.Plus, m.Minus)
	return w
}

// Weights returns the half-width-proportional interpolation weights for the
// n-1 interior faces. For equal-width neighbors wtM[i] + wtP[i] == 1.
func (m *Mesh) Weights() (wtM, wtP []float64) {
	n := m.Len()
	if n < 2 {
		return nil, nil
	}
	wtM = make([]float64, n-1)
	wtP = make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		dx := m.Center[i+1] - m.Center[i]
		wtM[i] = 0.5 * (m.Plus[i] - m.Minus[i]) / dx
		wtP[i] = 0.5 * (m.Plus[i+1] - m.Minus[i+1]) / dx
	}
	return wtM, wtP
}

// Concat joins meshes end to end into one mesh. The inputs are expected
// to be contiguous (each one starting where the previous one ends).
func Concat(ms ...*Mesh) *Mesh {
	total := 0
	for _, m := range ms {
		total += m.Len()
	}
	out := &Mesh{
		Minus:  make([]float64, 0, total),
		Plus:   make([]float64, 0, total),
		Center: make([]float64, 0, total),
	}
	for _, m := range ms {
		out.Minus = append(out.Minus, m.Minus...)
		out.Plus = append(out.Plus, m.Plus...)
		out.Center = append(out.Center, m.Center...)
	}
	return out
}
