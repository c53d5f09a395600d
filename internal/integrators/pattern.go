package integrators

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pattern probes the structural nonzeros of dF/dy + dF/dyp at (t, y, yp)
// by perturbing one column at a time. Entry (i, j) is 1 when row i
// responds to y_j or yp_j.
func Pattern(res ResidualFunc, t float64, y, yp []float64) (*mat.Dense, error) {
	n := len(y)
	p := mat.NewDense(n, n, nil)

	r0 := make([]float64, n)
	r1 := make([]float64, n)
	if err := res(t, y, yp, r0); err != nil {
		return nil, err
	}

	yt := append([]float64(nil), y...)
	ypt := append([]float64(nil), yp...)
	for j := 0; j < n; j++ {
		dy := 1e-6 * math.Max(1, math.Abs(y[j]))
		yt[j] += dy
		if err := res(t, yt, yp, r1); err != nil {
			return nil, err
		}
		yt[j] = y[j]
		mark(p, j, r0, r1)

		dyp := 1e-6 * math.Max(1, math.Abs(yp[j]))
		ypt[j] += dyp
		if err := res(t, y, ypt, r1); err != nil {
			return nil, err
		}
		ypt[j] = yp[j]
		mark(p, j, r0, r1)
	}
	return p, nil
}

func mark(p *mat.Dense, j int, r0, r1 []float64) {
	for i := range r0 {
		if r1[i] != r0[i] {
			p.Set(i, j, 1)
		}
	}
}

// PatternBandwidth returns the lower and upper half-bandwidths of the
// nonzeros of p.
func PatternBandwidth(p mat.Matrix) (lband, uband int) {
	r, c := p.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if p.At(i, j) == 0 {
				continue
			}
			lband = max(lband, i-j)
			uband = max(uband, j-i)
		}
	}
	return lband, uband
}
