package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/batsim/internal/integrators"
)

// BandwidthReport compares the declared half-bandwidths of a model with the
// ones measured by finite differences.
type BandwidthReport struct {
	Model            string
	Size             int
	LBand, UBand     int
	ProbedL, ProbedU int
	Pattern          *mat.Dense
	NonZeros         int
}

// Sound reports whether the probed bandwidth fits in the declared one.
func (r *BandwidthReport) Sound() bool {
	return r.ProbedL <= r.LBand && r.ProbedU <= r.UBand
}

// ProbeBandwidth measures the Jacobian sparsity of m at its rest state
// under step. It is an offline check and is never called while stepping.
func ProbeBandwidth(m Model, step *Step) (*BandwidthReport, error) {
	if err := step.Validate(); err != nil {
		return nil, err
	}
	res, err := m.Bind(step)
	if err != nil {
		return nil, err
	}
	y, yp := m.InitialState()
	p, err := integrators.Pattern(res, 0, y, yp)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", m.Name(), err)
	}

	r := &BandwidthReport{
		Model:   m.Name(),
		Size:    m.Size(),
		Pattern: p,
	}
	r.LBand, r.UBand = m.Bandwidth()
	r.ProbedL, r.ProbedU = integrators.PatternBandwidth(p)

	rows, cols := p.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if p.At(i, j) != 0 {
				r.NonZeros++
			}
		}
	}
	return r, nil
}
