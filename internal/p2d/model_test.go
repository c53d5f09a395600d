package p2d

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/integrators"
	"github.com/san-kum/batsim/internal/sim"
)

func preset(t *testing.T, name string) config.Params {
	t.Helper()
	p, err := config.GetPreset("p2d", name)
	require.NoError(t, err)
	return p
}

func newModel(t *testing.T, name string) *Model {
	t.Helper()
	m, err := New(preset(t, name))
	require.NoError(t, err)
	return m
}

func currentStep(amps, tmax, dt float64) *sim.Step {
	return &sim.Step{
		BC:    sim.Current{Value: sim.Constant(amps), Units: sim.Amps},
		TSpan: sim.TSpan{Max: tmax, Dt: dt},
	}
}

func residualAt(t *testing.T, m *Model, step *sim.Step, y, yp []float64) []float64 {
	t.Helper()
	res, err := m.Bind(step)
	require.NoError(t, err)
	out := make([]float64, m.Size())
	require.NoError(t, res(0, y, yp, out))
	return out
}

func TestModel_PointersTileState(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")

	var idx []int
	for _, p := range m.Pointers() {
		idx = append(idx, p.Indices()...)
	}
	sort.Ints(idx)
	require.Len(t, idx, m.Size())
	for k, i := range idx {
		require.Equal(t, k, i, "state index %d covered twice or not at all", k)
	}

	stride := m.An.Stride()
	assert.Equal(t, m.An.Nx*stride+m.Sep.Nx*2+m.Ca.Nx*m.Ca.Stride(), m.Size())
}

func TestModel_RestStateIsEquilibrium(t *testing.T) {
	for _, name := range []string{"graphite_nmc532_coarse", "graphite_nmc532_hyst"} {
		m := newModel(t, name)
		y, yp := m.InitialState()
		res := residualAt(t, m, currentStep(0, 1, 1), y, yp)
		for k, r := range res {
			assert.InDelta(t, 0, r, 1e-6, "%s row %d", name, k)
		}
	}
}

func TestModel_AlgebraicRowsIgnoreYp(t *testing.T) {
	m := newModel(t, "graphite_nmc532_hyst")
	y, yp := m.InitialState()
	step := currentStep(-1, 1, 1)
	r0 := residualAt(t, m, step, y, yp)

	alg := make(map[int]bool)
	for _, i := range m.AlgebraicIndices() {
		alg[i] = true
	}

	for j := range yp {
		yp[j] = 1e-3
		r1 := residualAt(t, m, step, y, yp)
		yp[j] = 0
		if alg[j] {
			assert.Equal(t, r0[j], r1[j], "algebraic row %d responds to yp", j)
		} else {
			assert.NotEqual(t, r0[j], r1[j], "differential row %d ignores yp", j)
		}
	}
}

func TestModel_BandwidthWithinStatic(t *testing.T) {
	bcs := []sim.BoundaryCondition{
		sim.Current{Value: sim.Constant(-1), Units: sim.Amps},
		sim.Voltage{Value: sim.Constant(3.6)},
		sim.Power{Value: sim.Constant(-3)},
	}
	for _, name := range []string{"graphite_nmc532_coarse", "graphite_nmc532_hyst"} {
		m := newModel(t, name)
		lband, uband := m.Bandwidth()
		for _, bc := range bcs {
			res, err := m.Bind(&sim.Step{BC: bc, TSpan: sim.TSpan{Max: 1, Dt: 1}})
			require.NoError(t, err)

			y, yp := m.InitialState()
			p, err := integrators.Pattern(res, 0, y, yp)
			require.NoError(t, err)
			l, u := integrators.PatternBandwidth(p)
			assert.LessOrEqual(t, l, lband, "%s %s", name, bc.Kind())
			assert.LessOrEqual(t, u, uband, "%s %s", name, bc.Kind())
		}
	}
}

func TestModel_StaticBandwidth(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	l, u := m.Bandwidth()
	assert.Equal(t, m.An.Nr+4, l)
	assert.Equal(t, l, u)

	h := newModel(t, "graphite_nmc532_hyst")
	l, _ = h.Bandwidth()
	assert.Equal(t, h.An.Nr+5, l)
}

func TestModel_RejectsCoarseMesh(t *testing.T) {
	p := preset(t, "graphite_nmc532_coarse")
	require.NoError(t, p.Set("anode.Nx", 1))
	_, err := New(p)
	assert.ErrorIs(t, err, dynamo.ErrConfig)

	p = preset(t, "graphite_nmc532_coarse")
	require.NoError(t, p.Set("cathode.Nr", 1))
	_, err = New(p)
	assert.ErrorIs(t, err, dynamo.ErrConfig)

	p = preset(t, "graphite_nmc532_coarse")
	delete(p["electrolyte"], "material")
	_, err = New(p)
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestModel_BindRejectsBadBoundary(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	_, err := m.Bind(&sim.Step{BC: sim.Current{Value: sim.Constant(1), Units: "mA"}})
	assert.ErrorIs(t, err, dynamo.ErrConfig)
	_, err = m.Bind(&sim.Step{BC: sim.Voltage{}})
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestModel_DischargeConservesCharge(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	s, err := sim.New(m)
	require.NoError(t, err)

	step := currentStep(-1, 60, 10)
	sol, err := s.RunStep(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, sim.Completed, sol.Status)

	for k, obs := range sol.Observables {
		assert.InDelta(t, -1, obs.CurrentA, 1e-12)
		assert.InDelta(t, -1, obs.CurrentC, 1e-12)
		if k > 0 {
			assert.Less(t, obs.VoltageV, sol.Observables[k-1].VoltageV, "voltage rises during discharge at t=%g", obs.TimeS)
		}
	}

	assertConservesCharge(t, m, sol)

	last := len(sol.T) - 1
	prof, err := m.Post(step, sol.T[last], sol.Y[last], sol.Yp[last])
	require.NoError(t, err)
	assert.Len(t, prof.SdotAn, m.An.Nx)
	assert.Len(t, prof.DivI["separator"], m.Sep.Nx)
	assert.Len(t, prof.IEl, m.An.Nx+m.Sep.Nx+m.Ca.Nx+1)
	assert.Zero(t, prof.IEl[0])
}

// assertConservesCharge checks every sample of sol: the reaction currents
// of both electrodes match the terminal current and the total current is
// divergence free.
func assertConservesCharge(t *testing.T, m *Model, sol *sim.StepSolution) {
	t.Helper()
	// reaction source scale [A/m3]
	scale := 1 / (m.Bat.Area * m.An.Thick)

	for k := range sol.T {
		prof, err := m.Post(sol.Step, sol.T[k], sol.Y[k], sol.Yp[k])
		require.NoError(t, err)

		amps := sol.Observables[k].CurrentA
		tol := 5e-3 * math.Max(1, math.Abs(amps))
		assert.InDelta(t, -amps, prof.FaradaicAn, tol, "anode at t=%g", sol.T[k])
		assert.InDelta(t, amps, prof.FaradaicCa, tol, "cathode at t=%g", sol.T[k])

		for region, div := range prof.DivI {
			for i, d := range div {
				assert.InDelta(t, 0, d, 1e-2*scale*math.Max(1, math.Abs(amps)), "%s cell %d at t=%g", region, i, sol.T[k])
			}
		}
	}
}

func voltageStep(volts, tmax, dt float64) *sim.Step {
	return &sim.Step{
		BC:    sim.Voltage{Value: sim.Constant(volts)},
		TSpan: sim.TSpan{Max: tmax, Dt: dt},
	}
}

func TestModel_VoltageHoldFromRest(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	s, err := sim.New(m)
	require.NoError(t, err)

	rest, err := s.RunStep(context.Background(), currentStep(0, 10, 5))
	require.NoError(t, err)
	ocv := rest.Observables[0].VoltageV
	require.NoError(t, s.Reset())

	sol, err := s.RunStep(context.Background(), voltageStep(ocv-0.01, 60, 10))
	require.NoError(t, err)
	require.Equal(t, sim.Completed, sol.Status, sol.Message)
	assert.Zero(t, sol.Homotopy)

	for _, obs := range sol.Observables {
		assert.InDelta(t, ocv-0.01, obs.VoltageV, 1e-6, "t=%g", obs.TimeS)
		assert.Less(t, obs.CurrentA, 0.0, "holding below rest must discharge at t=%g", obs.TimeS)
	}
	assertConservesCharge(t, m, sol)
}

func TestModel_VoltageHoldAfterDischarge(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	s, err := sim.New(m)
	require.NoError(t, err)

	cc, err := s.RunStep(context.Background(), currentStep(-1, 600, 60))
	require.NoError(t, err)
	vEnd := cc.Final().VoltageV

	for _, dv := range []float64{0, -0.001, -0.02} {
		require.NoError(t, s.Reset())
		_, err := s.RunStep(context.Background(), currentStep(-1, 600, 60))
		require.NoError(t, err)

		cv, err := s.RunStep(context.Background(), voltageStep(vEnd+dv, 60, 10))
		require.NoError(t, err, "dv=%g", dv)
		require.Equal(t, sim.Completed, cv.Status, "dv=%g: %s", dv, cv.Message)
		assert.Zero(t, cv.Homotopy, "dv=%g", dv)

		for _, obs := range cv.Observables {
			assert.InDelta(t, vEnd+dv, obs.VoltageV, 1e-6, "dv=%g t=%g", dv, obs.TimeS)
		}
		// a lower hold draws more discharge current at the start
		if dv < 0 {
			assert.Less(t, cv.Observables[0].CurrentA, -1.0, "dv=%g", dv)
		}
		assertConservesCharge(t, m, cv)
	}
}

func TestModel_ConstantPowerDischarge(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	s, err := sim.New(m)
	require.NoError(t, err)

	step := &sim.Step{
		BC:    sim.Power{Value: sim.Constant(-3)},
		TSpan: sim.TSpan{Max: 120, Dt: 20},
	}
	sol, err := s.RunStep(context.Background(), step)
	require.NoError(t, err)
	require.Equal(t, sim.Completed, sol.Status, sol.Message)

	for k, obs := range sol.Observables {
		assert.InDelta(t, -3, obs.PowerW, 1e-5, "t=%g", obs.TimeS)
		assert.Less(t, obs.CurrentA, 0.0)
		if k > 0 {
			// falling voltage needs more current for the same power
			assert.LessOrEqual(t, obs.CurrentA, sol.Observables[k-1].CurrentA+1e-9, "t=%g", obs.TimeS)
		}
	}
	assertConservesCharge(t, m, sol)
}

func TestModel_DenseMatchesBand(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")

	run := func(solver string) *sim.StepSolution {
		o := integrators.DefaultOptions()
		o.LinearSolver = solver
		s, err := sim.New(m, sim.WithOptions(o))
		require.NoError(t, err)
		sol, err := s.RunStep(context.Background(), currentStep(-1, 600, 60))
		require.NoError(t, err, solver)
		require.Equal(t, sim.Completed, sol.Status, sol.Message)
		return sol
	}
	band, dense := run(integrators.LinearBand), run(integrators.LinearDense)

	require.Equal(t, band.T, dense.T)
	for k := range band.Observables {
		assert.InDelta(t, band.Observables[k].VoltageV, dense.Observables[k].VoltageV, 1e-5, "t=%g", band.T[k])
	}
}

func TestModel_AmpsAndCRateAgree(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	require.Equal(t, 1.0, m.Bat.Cap)

	run := func(bc sim.BoundaryCondition) *sim.StepSolution {
		s, err := sim.New(m)
		require.NoError(t, err)
		sol, err := s.RunStep(context.Background(), &sim.Step{BC: bc, TSpan: sim.TSpan{Max: 30, Dt: 5}})
		require.NoError(t, err)
		return sol
	}
	a := run(sim.Current{Value: sim.Constant(-1), Units: sim.Amps})
	c := run(sim.Current{Value: sim.Constant(-1), Units: sim.CRate})

	require.Equal(t, a.T, c.T)
	for k := range a.Observables {
		assert.InDelta(t, a.Observables[k].VoltageV, c.Observables[k].VoltageV, 1e-12)
	}
}

func TestModel_VoltageLimitEndsStep(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")
	s, err := sim.New(m)
	require.NoError(t, err)

	free, err := s.RunStep(context.Background(), currentStep(-2, 60, 5))
	require.NoError(t, err)
	require.NoError(t, s.Reset())

	mid := free.Observables[len(free.Observables)/2].VoltageV
	step := currentStep(-2, 60, 5)
	step.Limits = []sim.Limit{{Name: sim.VoltageV, Threshold: mid}}

	sol, err := s.RunStep(context.Background(), step)
	require.NoError(t, err)
	assert.Equal(t, sim.TerminatedOnEvent, sol.Status)
	require.NotNil(t, sol.Event)
	assert.Equal(t, step.Limits, sol.Event.Limits)
	assert.Less(t, sol.T[len(sol.T)-1], 60.0)
	assert.InDelta(t, mid, sol.Final().VoltageV, 1e-3)

	t0, _, _ := s.State()
	assert.InDelta(t, sol.T[len(sol.T)-1], t0, 1e-12)
}

func TestModel_RestStepsCompose(t *testing.T) {
	m := newModel(t, "graphite_nmc532_coarse")

	split, err := sim.New(m)
	require.NoError(t, err)
	_, err = split.Run(context.Background(), []*sim.Step{currentStep(0, 30, 10), currentStep(0, 30, 10)},
		sim.RunOptions{TShift: sim.DefaultTShift})
	require.NoError(t, err)
	_, ySplit, _ := split.State()

	whole, err := sim.New(m)
	require.NoError(t, err)
	_, err = whole.Run(context.Background(), []*sim.Step{currentStep(0, 60, 10)},
		sim.RunOptions{TShift: sim.DefaultTShift})
	require.NoError(t, err)
	_, yWhole, _ := whole.State()

	y0, _ := m.InitialState()
	for k := range y0 {
		assert.InDelta(t, yWhole[k], ySplit[k], 1e-8, "state %d", k)
		assert.InDelta(t, y0[k], yWhole[k], 1e-8, "state %d", k)
	}
}
