package spm

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/integrators"
	"github.com/san-kum/batsim/internal/sim"
)

func newModel(t *testing.T, name string) *Model {
	t.Helper()
	p, err := config.GetPreset("spm", name)
	require.NoError(t, err)
	m, err := New(p)
	require.NoError(t, err)
	return m
}

func step(bc sim.BoundaryCondition, tmax, dt float64) *sim.Step {
	return &sim.Step{BC: bc, TSpan: sim.TSpan{Max: tmax, Dt: dt}}
}

func amps(v float64) sim.BoundaryCondition {
	return sim.Current{Value: sim.Constant(v), Units: sim.Amps}
}

func TestModel_Layout(t *testing.T) {
	m := newModel(t, "graphite_nmc532")

	var idx []int
	for _, p := range m.Pointers() {
		idx = append(idx, p.Indices()...)
	}
	sort.Ints(idx)
	require.Len(t, idx, m.Size())
	for k, i := range idx {
		require.Equal(t, k, i)
	}

	// both reaction sites sit next to the electrolyte potential
	phie := m.El.Ptr.Base("phie")
	assert.Equal(t, phie-1, m.An.Ptr.At("phis", 0))
	assert.Equal(t, phie+1, m.Ca.Ptr.At("phis", 0))
	assert.Equal(t, phie-2, m.An.Ptr.Shell("xs", 0, m.An.SurfaceShell()))
	assert.Equal(t, phie+2, m.Ca.Ptr.Shell("xs", 0, m.Ca.SurfaceShell()))

	assert.Equal(t, []int{phie - 1, phie, phie + 1}, m.AlgebraicIndices())
}

func TestModel_RestStateIsEquilibrium(t *testing.T) {
	for _, name := range []string{"graphite_nmc532", "graphite_nmc532_hyst"} {
		m := newModel(t, name)
		res, err := m.Bind(step(amps(0), 1, 1))
		require.NoError(t, err)

		y, yp := m.InitialState()
		out := make([]float64, m.Size())
		require.NoError(t, res(0, y, yp, out))
		for k, r := range out {
			assert.InDelta(t, 0, r, 1e-6, "%s row %d", name, k)
		}
	}
}

func TestModel_BandwidthWithinStatic(t *testing.T) {
	bcs := []sim.BoundaryCondition{
		amps(-1),
		sim.Voltage{Value: sim.Constant(3.6)},
		sim.Power{Value: sim.Constant(-3)},
	}
	for _, name := range []string{"graphite_nmc532", "graphite_nmc532_hyst"} {
		m := newModel(t, name)
		lband, uband := m.Bandwidth()
		assert.Equal(t, 3+len(m.An.Extensions)+len(m.Ca.Extensions), lband)

		for _, bc := range bcs {
			res, err := m.Bind(step(bc, 1, 1))
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

func TestModel_RejectsSingleShell(t *testing.T) {
	p, err := config.GetPreset("spm", "graphite_nmc532")
	require.NoError(t, err)
	require.NoError(t, p.Set("anode.Nr", 1))
	_, err = New(p)
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestModel_ElectrolyteMaterialOptional(t *testing.T) {
	p, err := config.GetPreset("spm", "graphite_nmc532")
	require.NoError(t, err)
	delete(p["electrolyte"], "material")
	m, err := New(p)
	require.NoError(t, err)
	assert.False(t, m.El.HasTransport())
}

func TestModel_CurrentModeConservesCharge(t *testing.T) {
	m := newModel(t, "graphite_nmc532_hyst")
	s, err := sim.New(m)
	require.NoError(t, err)

	st := step(amps(-1), 120, 10)
	sol, err := s.RunStep(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, sim.Completed, sol.Status)

	for k := range sol.T {
		prof, err := m.Post(st, sol.T[k], sol.Y[k], sol.Yp[k])
		require.NoError(t, err)
		assert.InDelta(t, 1, prof.FaradaicAn, 1e-3, "t=%g", sol.T[k])
		assert.InDelta(t, -1, prof.FaradaicCa, 1e-3, "t=%g", sol.T[k])
		assert.Greater(t, prof.SdotAn[0], 0.0)
	}

	first, last := sol.Observables[0], sol.Final()
	assert.Less(t, last.VoltageV, first.VoltageV)
	assert.InDelta(t, 120, last.TimeS, 1e-12)
}

func TestModel_VoltageHoldAtRest(t *testing.T) {
	m := newModel(t, "graphite_nmc532")
	y, _ := m.InitialState()
	v0 := y[m.Ca.Ptr.At("phis", 0)]

	s, err := sim.New(m)
	require.NoError(t, err)
	sol, err := s.RunStep(context.Background(), step(sim.Voltage{Value: sim.Constant(v0)}, 30, 10))
	require.NoError(t, err)

	for _, obs := range sol.Observables {
		assert.InDelta(t, v0, obs.VoltageV, 1e-8)
		assert.InDelta(t, 0, obs.CurrentA, 1e-6)
	}
}

func TestModel_PowerModeTracksTarget(t *testing.T) {
	m := newModel(t, "graphite_nmc532")
	s, err := sim.New(m)
	require.NoError(t, err)

	st := step(sim.Power{Value: sim.Constant(-3)}, 60, 10)
	sol, err := s.RunStep(context.Background(), st)
	require.NoError(t, err)

	for _, obs := range sol.Observables {
		assert.InDelta(t, -3, obs.PowerW, 1e-3)
		assert.Less(t, obs.CurrentA, 0.0)
	}

	last := len(sol.T) - 1
	prof, err := m.Post(st, sol.T[last], sol.Y[last], sol.Yp[last])
	require.NoError(t, err)
	assert.InDelta(t, -sol.Final().CurrentA, prof.FaradaicAn, 1e-9)
	assert.InDelta(t, 0, prof.FaradaicAn+prof.FaradaicCa, 1e-3)
}
