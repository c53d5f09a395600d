package integrators

import (
	"fmt"
	"math"
)

// crossings lists the event components whose sign changed over a step.
// Components that started exactly at zero are skipped until they leave it.
func crossings(prev, next []float64) []int {
	var idx []int
	for i := range prev {
		if prev[i] == 0 {
			continue
		}
		if next[i] == 0 || math.Signbit(prev[i]) != math.Signbit(next[i]) {
			idx = append(idx, i)
		}
	}
	return idx
}

// locate finds the earliest crossing among idx with the Illinois variant
// of regula falsi on the step interpolant. The returned time is on the far
// side of the crossing.
func (s *IDA) locate(interp hermite, idx []int, gPrev, gNew []float64, ttol float64) (float64, []int, error) {
	g := make([]float64, len(gPrev))
	eval := func(t float64, i int) (float64, error) {
		y, yp := interp.at(t)
		if err := s.opts.Events(t, y, yp, g); err != nil {
			return 0, fmt.Errorf("events at t=%g: %w", t, err)
		}
		return g[i], nil
	}

	roots := make([]float64, len(idx))
	for k, i := range idx {
		root, err := illinois(interp.t0, interp.t1, gPrev[i], gNew[i], ttol, func(t float64) (float64, error) {
			return eval(t, i)
		})
		if err != nil {
			return 0, nil, err
		}
		roots[k] = root
	}

	tRoot := math.Inf(1)
	for _, r := range roots {
		tRoot = math.Min(tRoot, r)
	}
	var comps []int
	for k, r := range roots {
		if r-tRoot <= ttol {
			comps = append(comps, idx[k])
		}
	}
	return tRoot, comps, nil
}

func illinois(lo, hi, flo, fhi, ttol float64, f func(float64) (float64, error)) (float64, error) {
	if fhi == 0 {
		return hi, nil
	}
	side := 0
	for iter := 0; iter < 100 && hi-lo > ttol; iter++ {
		c := hi - fhi*(hi-lo)/(fhi-flo)
		if !(c > lo && c < hi) {
			c = 0.5 * (lo + hi)
		}
		fc, err := f(c)
		if err != nil {
			return 0, err
		}
		if fc == 0 {
			return c, nil
		}
		if math.Signbit(fc) == math.Signbit(flo) {
			lo, flo = c, fc
			if side == -1 {
				fhi /= 2
			}
			side = -1
		} else {
			hi, fhi = c, fc
			if side == 1 {
				flo /= 2
			}
			side = 1
		}
	}
	return hi, nil
}
