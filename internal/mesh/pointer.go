package mesh

import (
	"fmt"
	"sort"
)

type varKind int

const (
	kindX varKind = iota
	kindXR
)

// Pointer maps variable names to flat state-vector indices for one domain.
//
// An x variable owns one slot per axial cell at base + i*CellStride. An xr
// variable owns one slot per (cell, shell) at base + i*CellStride +
// j*ShellStride. ShellStride may be negative when shells are stored from
// the particle surface inward.
type Pointer struct {
	base  map[string]int
	kinds map[string]varKind
	order []string

	CellStride  int
	ShellStride int
	Nx          int
	Nr          int
	Start       int
}

// NewPointer starts an empty table for a domain whose first element sits at
// start.
func NewPointer(start, nx, nr, cellStride, shellStride int) *Pointer {
	return &Pointer{
		base:        make(map[string]int),
		kinds:       make(map[string]varKind),
		CellStride:  cellStride,
		ShellStride: shellStride,
		Nx:          nx,
		Nr:          nr,
		Start:       start,
	}
}

// Add registers an x variable at the given offset within the first cell.
func (p *Pointer) Add(name string, offset int) {
	p.register(name, offset, kindX)
}

// AddShells registers an x×r variable whose shell 0 sits at offset.
func (p *Pointer) AddShells(name string, offset int) {
	p.register(name, offset, kindXR)
}

func (p *Pointer) register(name string, offset int, kind varKind) {
	if _, ok := p.base[name]; ok {
		panic(fmt.Sprintf("mesh: variable %q registered twice", name))
	}
	p.base[name] = p.Start + offset
	p.kinds[name] = kind
	p.order = append(p.order, name)
}

// Size is the number of state elements owned by the domain.
func (p *Pointer) Size() int { return p.Nx * p.CellStride }

// Has reports whether name is registered.
func (p *Pointer) Has(name string) bool {
	_, ok := p.base[name]
	return ok
}

// Base returns the global index of name in the first cell (and shell 0).
func (p *Pointer) Base(name string) int {
	b, ok := p.base[name]
	if !ok {
		panic(fmt.Sprintf("mesh: unknown variable %q", name))
	}
	return b
}

// X returns base + i*CellStride for every axial cell.
func (p *Pointer) X(name string) []int {
	b := p.Base(name)
	idx := make([]int, p.Nx)
	for i := range idx {
		idx[i] = b + i*p.CellStride
	}
	return idx
}

// R returns base + j*ShellStride for every radial shell of the first cell.
func (p *Pointer) R(name string) []int {
	b := p.Base(name)
	idx := make([]int, p.Nr)
	for j := range idx {
		idx[j] = b + j*p.ShellStride
	}
	return idx
}

// XR returns the (cell, shell) index grid, row = cell, column = shell.
func (p *Pointer) XR(name string) [][]int {
	b := p.Base(name)
	grid := make([][]int, p.Nx)
	for i := range grid {
		grid[i] = make([]int, p.Nr)
		for j := range grid[i] {
			grid[i][j] = b + i*p.CellStride + j*p.ShellStride
		}
	}
	return grid
}

// XRFlat is XR flattened row-major (cell, then shell).
func (p *Pointer) XRFlat(name string) []int {
	grid := p.XR(name)
	flat := make([]int, 0, p.Nx*p.Nr)
	for _, row := range grid {
		flat = append(flat, row...)
	}
	return flat
}

// Shift returns a copy with every base offset and Start moved by delta.
// Strides are unchanged.
func (p *Pointer) Shift(delta int) *Pointer {
	q := NewPointer(p.Start+delta, p.Nx, p.Nr, p.CellStride, p.ShellStride)
	for _, name := range p.order {
		q.base[name] = p.base[name] + delta
		q.kinds[name] = p.kinds[name]
		q.order = append(q.order, name)
	}
	return q
}

// Names returns the registered variable names in registration order.
func (p *Pointer) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Indices returns every index owned by a registered variable, sorted.
func (p *Pointer) Indices() []int {
	out := make([]int, 0, p.Size())
	for _, name := range p.order {
		if p.kinds[name] == kindXR {
			out = append(out, p.XRFlat(name)...)
		} else {
			out = append(out, p.X(name)...)
		}
	}
	sort.Ints(out)
	return out
}

// Validate checks that the registered variables tile [Start, Start+Size)
// exactly once.
func (p *Pointer) Validate() error {
	seen := make(map[int]string, p.Size())
	for _, name := range p.order {
		var idx []int
		if p.kinds[name] == kindXR {
			idx = p.XRFlat(name)
		} else {
			idx = p.X(name)
		}
		for _, k := range idx {
			if k < p.Start || k >= p.Start+p.Size() {
				return fmt.Errorf("mesh: %q index %d outside [%d, %d)", name, k, p.Start, p.Start+p.Size())
			}
			if other, ok := seen[k]; ok {
				return fmt.Errorf("mesh: index %d shared by %q and %q", k, other, name)
			}
			seen[k] = name
		}
	}
	if len(seen) != p.Size() {
		return fmt.Errorf("mesh: %d of %d indices covered", len(seen), p.Size())
	}
	return nil
}

// At returns the index of x variable name in cell i.
func (p *Pointer) At(name string, i int) int {
	return p.Base(name) + i*p.CellStride
}

// Shell returns the index of xr variable name in cell i, shell j.
func (p *Pointer) Shell(name string, i, j int) int {
	return p.Base(name) + i*p.CellStride + j*p.ShellStride
}
