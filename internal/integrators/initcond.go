package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/dynamo"
)

const (
	icMaxIter   = 15
	icMinLambda = 1e-4
	icArmijo    = 1e-4
	icTol       = 1e-3
)

// initialCondition makes (y, yp) consistent in place. In yp0 mode the
// differential derivatives and the algebraic values are solved for with
// the differential values held fixed. In y0 mode every y is solved for
// with yp held fixed.
//
// Each Newton iteration refreshes the iteration matrix. Steps are damped
// on the weighted norm of the next Newton correction J⁻¹F, not on F,
// since the rows of F carry different units.
func (s *IDA) initialCondition(t0, tspan float64, y, yp []float64) error {
	hic := 1e-3 * tspan
	s.setWeights(y)

	unknownIsYp := make([]bool, s.n)
	wu := make([]float64, s.n)
	for j := 0; j < s.n; j++ {
		if s.opts.CalcInitCond == InitYp0 && s.diff[j] {
			unknownIsYp[j] = true
			s.cy[j], s.cyp[j] = 0, 1
			wu[j] = s.w[j] * hic
		} else {
			s.cy[j], s.cyp[j] = 1, 0
			wu[j] = s.w[j]
		}
	}
	wnorm := func(v []float64) float64 {
		sum := 0.0
		for j, x := range v {
			e := x * wu[j]
			sum += e * e
		}
		return math.Sqrt(sum / float64(len(v)))
	}

	delta := make([]float64, s.n)
	next := make([]float64, s.n)
	rTrial := make([]float64, s.n)
	y1 := make([]float64, s.n)
	yp1 := make([]float64, s.n)

	if err := s.eval(t0, y, yp, s.r0); err != nil {
		return fmt.Errorf("initial residual: %w", err)
	}

	for it := 0; it < icMaxIter; it++ {
		for j := 0; j < s.n; j++ {
			if unknownIsYp[j] {
				s.scale[j] = math.Abs(yp[j])
				s.floor[j] = 1 / wu[j]
			} else {
				s.scale[j] = math.Abs(y[j])
				s.floor[j] = 1 / s.w[j]
			}
		}
		if err := s.jacobian(t0, y, yp, s.r0); err != nil {
			return fmt.Errorf("initial condition: %w", err)
		}
		for i, r := range s.r0 {
			delta[i] = -r
		}
		if err := s.lin.Solve(delta); err != nil {
			return fmt.Errorf("initial condition: %w", err)
		}
		dnorm := wnorm(delta)
		if math.IsNaN(dnorm) {
			return fmt.Errorf("%w: initial condition step is not finite", dynamo.ErrConvergence)
		}

		// backtrack until the next correction shrinks
		lambda := 1.0
		merit := math.Inf(1)
		for lambda >= icMinLambda {
			copy(y1, y)
			copy(yp1, yp)
			for j, d := range delta {
				if unknownIsYp[j] {
					yp1[j] += lambda * d
				} else {
					y1[j] += lambda * d
				}
			}
			if err := s.eval(t0, y1, yp1, rTrial); err == nil {
				for i, r := range rTrial {
					next[i] = -r
				}
				if err := s.lin.Solve(next); err == nil {
					merit = wnorm(next)
					if merit <= (1-icArmijo*lambda)*dnorm {
						break
					}
				}
			}
			lambda /= 2
		}
		if lambda < icMinLambda {
			// stalled within one tolerance unit of the solution
			if dnorm <= 1 {
				return nil
			}
			return fmt.Errorf("%w: initial condition line search failed (correction norm %.3g)", dynamo.ErrConvergence, dnorm)
		}
		copy(y, y1)
		copy(yp, yp1)
		copy(s.r0, rTrial)

		if merit <= icTol || lambda*dnorm <= icTol {
			return nil
		}
	}
	return fmt.Errorf("%w: initial condition did not converge in %d iterations", dynamo.ErrConvergence, icMaxIter)
}
