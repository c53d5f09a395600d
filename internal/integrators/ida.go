package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/batsim/internal/dynamo"
)

var sqrtEps = math.Sqrt(2.220446049250313e-16)

// step-size controller: scale by
// safety*err^(-1/(k+1)) and clamp.
const (
	safety    = 0.9
	minScale  = 0.2
	maxScale  = 2.0
	cutFactor = 0.25

	maxErrFails    = 3
	maxNewtonFails = 10
	jacMaxAge      = 20
	jacAlphaDrift  = 0.25
	newtonCoef     = 0.33
	newtonDiverge  = 0.9
)

// IDA integrates the implicit system F(t, y, yp) = 0 with a variable-step
// BDF method of order 1 or 2, a modified Newton corrector on a finite
// difference iteration matrix, and a banded or dense LU solver.
type IDA struct {
	n    int
	res  ResidualFunc
	opts Options
	log  logrus.FieldLogger
	lin  linearSolver

	diff  []bool
	nDiff int
	stats Stats

	w, r0, r1, ytmp, yptmp, inc, scale, floor, cy, cyp []float64
}

func NewIDA(n int, res ResidualFunc, opts Options) (*IDA, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: system size %d", dynamo.ErrDimensionMismatch, n)
	}
	o := opts.withDefaults(n)

	diff := make([]bool, n)
	for i := range diff {
		diff[i] = true
	}
	nDiff := n
	for _, k := range o.AlgebraicIdx {
		if k < 0 || k >= n {
			return nil, fmt.Errorf("%w: algebraic index %d outside [0, %d)", dynamo.ErrDimensionMismatch, k, n)
		}
		if diff[k] {
			diff[k] = false
			nDiff--
		}
	}
	if o.Events != nil && o.EventCount <= 0 {
		return nil, fmt.Errorf("%w: events function without an event count", dynamo.ErrConfig)
	}
	switch o.CalcInitCond {
	case InitYp0, InitY0, InitNone:
	default:
		return nil, fmt.Errorf("%w: unknown initial condition mode %q", dynamo.ErrConfig, o.CalcInitCond)
	}

	lin, err := newLinearSolver(o, n)
	if err != nil {
		return nil, err
	}

	buf := func() []float64 { return make([]float64, n) }
	return &IDA{
		n:     n,
		res:   res,
		opts:  o,
		log:   o.Logger,
		lin:   lin,
		diff:  diff,
		nDiff: nDiff,
		w:     buf(), r0: buf(), r1: buf(), ytmp: buf(), yptmp: buf(),
		inc: buf(), scale: buf(), floor: buf(), cy: buf(), cyp: buf(),
	}, nil
}

func (s *IDA) Stats() Stats { return s.stats }

func (s *IDA) eval(t float64, y, yp, res []float64) error {
	s.stats.ResidualEvals++
	return s.res(t, y, yp, res)
}

func (s *IDA) setWeights(y []float64) {
	for i, v := range y {
		s.w[i] = 1 / (s.opts.RTol*math.Abs(v) + s.opts.ATol)
	}
}

// norm is the weighted RMS norm, over differential components only when
// diffOnly is set.
func (s *IDA) norm(v []float64, diffOnly bool) float64 {
	sum, cnt := 0.0, 0
	for i, x := range v {
		if diffOnly && !s.diff[i] {
			continue
		}
		e := x * s.w[i]
		sum += e * e
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(cnt))
}

// jacobian builds and factors the finite-difference matrix of F around
// (t, y, yp), where r0 = F(t, y, yp). Column j perturbs y_j by cy[j]*inc
// and yp_j by cyp[j]*inc with inc = max(sqrt(eps)*scale[j], floor[j]),
// so a component at zero still moves by one tolerance unit. In band mode
// columns a full band apart are perturbed together.
func (s *IDA) jacobian(t float64, y, yp, r0 []float64) error {
	s.stats.JacobianEvals++
	s.lin.Zero()

	group := s.lin.Group()
	for start := 0; start < group && start < s.n; start++ {
		copy(s.ytmp, y)
		copy(s.yptmp, yp)
		for j := start; j < s.n; j += group {
			s.inc[j] = max(sqrtEps*s.scale[j], s.floor[j])
			s.ytmp[j] += s.cy[j] * s.inc[j]
			s.yptmp[j] += s.cyp[j] * s.inc[j]
		}
		if err := s.eval(t, s.ytmp, s.yptmp, s.r1); err != nil {
			return err
		}
		for j := start; j < s.n; j += group {
			lo, hi := s.lin.Rows(j)
			for i := lo; i <= hi; i++ {
				s.lin.Set(i, j, (s.r1[i]-r0[i])/s.inc[j])
			}
		}
	}
	return s.lin.Factor()
}

// bdfState is the history of the integration.
type bdfState struct {
	t, h, hPrev float64
	order       int
	y, yp       []float64
	yPrev       []float64

	jacValid bool
	jacFresh bool
	alphaJ   float64
	jacAge   int
}

// coefficients returns c0, c1, c2 with yp = c0*y + c1*y_n + c2*y_{n-1}.
func coefficients(order int, h, hPrev float64) (float64, float64, float64) {
	if order == 1 {
		return 1 / h, -1 / h, 0
	}
	w := h / hPrev
	return (1 + 2*w) / ((1 + w) * h), -(1 + w) / h, w * w / ((1 + w) * h)
}

func errorConstant(order int) float64 {
	if order == 1 {
		return 0.5
	}
	return 1.0 / 3.0
}

// Solve integrates from tout[0] to the last element of tout and returns
// the solution at every element of tout. It stops early at the first
// event crossing. On failure the partial result is returned with the
// error.
func (s *IDA) Solve(ctx context.Context, tout []float64, y0, yp0 []float64) (*Result, error) {
	if len(y0) != s.n || len(yp0) != s.n {
		return nil, fmt.Errorf("%w: got %d/%d values for %d unknowns", dynamo.ErrDimensionMismatch, len(y0), len(yp0), s.n)
	}
	if !dynamo.State(y0).IsValid() || !dynamo.State(yp0).IsValid() {
		return nil, fmt.Errorf("%w: initial state is not finite", dynamo.ErrInvalidState)
	}
	if len(tout) < 2 {
		return nil, fmt.Errorf("%w: need at least two output times", dynamo.ErrConfig)
	}
	for i := 1; i < len(tout); i++ {
		if tout[i] <= tout[i-1] {
			return nil, fmt.Errorf("%w: output times must increase", dynamo.ErrConfig)
		}
	}

	s.stats = Stats{}
	t0, tEnd := tout[0], tout[len(tout)-1]
	st := &bdfState{
		t:     t0,
		order: 1,
		y:     append([]float64(nil), y0...),
		yp:    append([]float64(nil), yp0...),
		yPrev: make([]float64, s.n),
	}
	res := &Result{}

	fail := func(err error) (*Result, error) {
		res.Success = false
		res.Status = StatusFailed
		res.Message = err.Error()
		res.Stats = s.stats
		s.log.WithFields(logrus.Fields{"t": st.t, "h": st.h, "nsteps": s.stats.Steps}).Debug("integration failed")
		return res, err
	}

	if s.opts.CalcInitCond != InitNone {
		if err := s.initialCondition(t0, tEnd-t0, st.y, st.yp); err != nil {
			return fail(err)
		}
	}
	res.append(t0, st.y, st.yp)

	var gPrev, gNew []float64
	if s.opts.Events != nil {
		gPrev = make([]float64, s.opts.EventCount)
		gNew = make([]float64, s.opts.EventCount)
		if err := s.opts.Events(t0, st.y, st.yp, gPrev); err != nil {
			return fail(fmt.Errorf("events at t=%g: %w", t0, err))
		}
	}

	maxStep := s.opts.MaxStep
	if maxStep <= 0 {
		maxStep = tEnd - t0
	}
	st.h = s.initialStep(t0, tEnd, st.y, st.yp, maxStep)

	var (
		next      = 1
		errFails  = 0
		ncf       = 0
		lastErr   error
		yOld      = make([]float64, s.n)
		ypOld     = make([]float64, s.n)
		yPred     = make([]float64, s.n)
		rest      = make([]float64, s.n)
		z         = make([]float64, s.n)
		ypz       = make([]float64, s.n)
		ttolScale = 100 * 2.220446049250313e-16
	)

	for st.t < tEnd {
		select {
		case <-ctx.Done():
			return fail(fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err()))
		default:
		}
		if s.stats.Steps >= s.opts.MaxSteps {
			return fail(fmt.Errorf("%w: %d steps before t=%g", dynamo.ErrMaxSteps, s.opts.MaxSteps, tEnd))
		}

		h := min(st.h, maxStep)
		last := false
		if st.t+h >= tEnd || tEnd-(st.t+h) < 1e-8*h {
			h = tEnd - st.t
			last = true
		}
		if h < s.opts.MinStep {
			if lastErr != nil {
				return fail(fmt.Errorf("%w at t=%g (h=%g): %v", dynamo.ErrConvergence, st.t, h, lastErr))
			}
			return fail(fmt.Errorf("%w at t=%g (h=%g)", dynamo.ErrStepTooSmall, st.t, h))
		}
		st.h = h
		tNew := st.t + h
		if last {
			tNew = tEnd
		}

		c0, c1, c2 := coefficients(st.order, h, st.hPrev)
		s.setWeights(st.y)
		s.predict(st, yPred)
		for i := range rest {
			rest[i] = c1 * st.y[i]
			if st.order == 2 {
				rest[i] += c2 * st.yPrev[i]
			}
		}
		copy(z, yPred)

		ok, err := s.correct(st, tNew, c0, rest, z, ypz)
		if err != nil || !ok {
			s.stats.NewtonFails++
			if err != nil {
				lastErr = err
			}
			if err == nil && !st.jacFresh {
				st.jacValid = false
				continue
			}
			ncf++
			st.jacValid = false
			if ncf > maxNewtonFails {
				return fail(fmt.Errorf("%w at t=%g after %d failures: %v", dynamo.ErrConvergence, st.t, ncf, lastErr))
			}
			st.h *= cutFactor
			continue
		}

		for i := range z {
			s.r1[i] = z[i] - yPred[i]
		}
		errNorm := errorConstant(st.order) * s.norm(s.r1, s.opts.SuppressAlgebraic)
		if errNorm > 1 {
			s.stats.Rejected++
			errFails++
			if errFails >= maxErrFails {
				st.h *= cutFactor
				st.order = 1
			} else {
				st.h *= max(minScale, safety*math.Pow(errNorm, -1/float64(st.order+1)))
			}
			continue
		}

		// accept
		s.stats.Steps++
		errFails, ncf, lastErr = 0, 0, nil
		copy(yOld, st.y)
		copy(ypOld, st.yp)
		tOld := st.t

		copy(st.yPrev, st.y)
		copy(st.y, z)
		copy(st.yp, ypz)
		st.t = tNew
		st.hPrev = h
		st.jacAge++
		st.jacFresh = false

		grow := maxScale
		if errNorm > 0 {
			grow = min(maxScale, max(0.5, safety*math.Pow(errNorm, -1/float64(st.order+1))))
		}
		st.h = h * grow
		st.order = 2

		interp := hermite{t0: tOld, t1: st.t, y0: yOld, yp0: ypOld, y1: st.y, yp1: st.yp}
		ttol := ttolScale * (math.Abs(st.t) + math.Abs(h))

		if s.opts.Events != nil {
			if err := s.opts.Events(st.t, st.y, st.yp, gNew); err != nil {
				return fail(fmt.Errorf("events at t=%g: %w", st.t, err))
			}
			if idx := crossings(gPrev, gNew); len(idx) > 0 {
				tRoot, comps, err := s.locate(interp, idx, gPrev, gNew, ttol)
				if err != nil {
					return fail(err)
				}
				for next < len(tout) && tout[next] < tRoot-ttol {
					s.emit(res, interp, tout[next])
					next++
				}
				yR, ypR := interp.at(tRoot)
				res.append(tRoot, yR, ypR)
				res.Roots = &Roots{T: tRoot, Y: yR, Yp: ypR, Index: comps}
				res.Success = true
				res.Status = StatusRoot
				res.Message = fmt.Sprintf("stopped at event %v, t=%g", comps, tRoot)
				res.Stats = s.stats
				return res, nil
			}
			copy(gPrev, gNew)
		}

		for next < len(tout) && tout[next] <= st.t+ttol {
			s.emit(res, interp, tout[next])
			next++
		}
	}

	for ; next < len(tout); next++ {
		res.append(tout[next], st.y, st.yp)
	}

	res.Success = true
	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("reached t=%g in %d steps", tEnd, s.stats.Steps)
	res.Stats = s.stats
	s.log.WithFields(logrus.Fields{
		"nsteps":   s.stats.Steps,
		"rejected": s.stats.Rejected,
		"nre":      s.stats.ResidualEvals,
		"nje":      s.stats.JacobianEvals,
	}).Debug("integration complete")
	return res, nil
}

func (s *IDA) emit(res *Result, interp hermite, t float64) {
	y, yp := interp.at(t)
	res.append(t, y, yp)
}

// predict extrapolates the history to t+h: linearly at order 1, and with
// the quadratic through y_{n-1}, y_n with slope yp_n at order 2.
func (s *IDA) predict(st *bdfState, yPred []float64) {
	h := st.h
	for i := range yPred {
		yPred[i] = st.y[i] + h*st.yp[i]
		if st.order == 2 {
			hp := st.hPrev
			a := (st.yPrev[i] - st.y[i] + hp*st.yp[i]) / (hp * hp)
			yPred[i] += a * h * h
		}
	}
}

// correct runs the modified Newton iteration on G(z) = F(t, z, c0*z+rest)
// starting from the predictor in z. It reports convergence; a non-nil
// error means the residual itself failed.
func (s *IDA) correct(st *bdfState, t, c0 float64, rest, z, ypz []float64) (bool, error) {
	for i := range z {
		ypz[i] = c0*z[i] + rest[i]
	}
	if err := s.eval(t, z, ypz, s.r0); err != nil {
		return false, err
	}

	if !st.jacValid || math.Abs(c0/st.alphaJ-1) > jacAlphaDrift || st.jacAge >= jacMaxAge {
		for j := range z {
			s.cy[j] = 1
			s.cyp[j] = c0
			s.scale[j] = max(math.Abs(z[j]), math.Abs(st.h*ypz[j]))
			s.floor[j] = 1 / s.w[j]
		}
		if err := s.jacobian(t, z, ypz, s.r0); err != nil {
			st.jacValid = false
			return false, err
		}
		st.jacValid, st.jacFresh = true, true
		st.alphaJ, st.jacAge = c0, 0
	}

	// stale alpha correction
	cjRatio := 2 / (1 + c0/st.alphaJ)

	delta := s.r1
	var d0, rate float64
	for m := 0; m < s.opts.MaxNewton; m++ {
		for i, r := range s.r0 {
			delta[i] = -r
		}
		if err := s.lin.Solve(delta); err != nil {
			return false, nil
		}
		if cjRatio != 1 {
			for i := range delta {
				delta[i] *= cjRatio
			}
		}
		for i := range z {
			z[i] += delta[i]
			ypz[i] = c0*z[i] + rest[i]
		}
		d := s.norm(delta, false)
		if math.IsNaN(d) {
			return false, nil
		}

		if m == 0 {
			d0 = d
			if d <= 1e-3 {
				return true, nil
			}
		} else {
			rate = math.Pow(d/d0, 1/float64(m))
			if rate > newtonDiverge {
				return false, nil
			}
			if rate/(1-rate)*d <= newtonCoef {
				return true, nil
			}
		}

		if m+1 < s.opts.MaxNewton {
			if err := s.eval(t, z, ypz, s.r0); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// initialStep picks h so the first step moves the differential states by
// about half a tolerance unit.
func (s *IDA) initialStep(t0, tEnd float64, y, yp []float64, maxStep float64) float64 {
	h := s.opts.InitialStep
	if h <= 0 {
		h = 1e-3 * (tEnd - t0)
		s.setWeights(y)
		if ypn := s.norm(yp, true); ypn*h > 0.5 {
			h = 0.5 / ypn
		}
	}
	h = min(h, maxStep, tEnd-t0)
	return max(h, 10*s.opts.MinStep)
}
