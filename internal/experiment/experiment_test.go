package experiment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

func TestTarget(t *testing.T) {
	tests := []struct {
		name  string
		value any
		at    float64
		want  float64
	}{
		{"float", -1.5, 10, -1.5},
		{"int", 2, 10, 2},
		{"numeric string", " 4.2 ", 10, 4.2},
		{"linear ramp", "3.0 + 0.001 * t", 100, 3.1},
		{"functions", "max(0, sin(t)) + abs(-1)", math.Pi / 2, 2},
		{"func", func(t float64) float64 { return 2 * t }, 3, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Target(tt.value)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, f(tt.at), 1e-12)
		})
	}
}

func TestTarget_Rejects(t *testing.T) {
	for _, v := range []any{nil, "3 +", "3 * soc", []int{1}} {
		_, err := Target(v)
		assert.ErrorIs(t, err, dynamo.ErrConfig, "%v", v)
	}
}

func TestExperiment_AddStep(t *testing.T) {
	e := New()
	require.NoError(t, e.AddStep(CurrentC, -1, sim.TSpan{Max: 3600, Dt: 60},
		sim.Limit{Name: sim.VoltageV, Threshold: 3.0}))
	require.NoError(t, e.AddStep(VoltageV, 4.2, sim.TSpan{Max: 600, Dt: 10}))
	require.NoError(t, e.AddStep(PowerW, "-2 - 0.01*t", sim.TSpan{Max: 60, Dt: 1}))
	require.NoError(t, e.AddStep(CurrentA, 0, sim.TSpan{Max: 60, Dt: 5}))
	require.Equal(t, 4, e.Len())

	steps := e.Steps()
	require.Len(t, steps, 4)
	assert.Equal(t, sim.Current{}.Kind(), steps[0].BC.Kind())
	assert.Equal(t, sim.CRate, steps[0].BC.(sim.Current).Units)
	assert.Equal(t, "voltage", steps[1].BC.Kind())
	assert.InDelta(t, -2.5, steps[2].BC.Target(50), 1e-12)
	assert.Equal(t, sim.Amps, steps[3].BC.(sim.Current).Units)

	// every call hands out independent copies
	steps[0].Limits[0].Threshold = 2.5
	steps[0].T0 = 99
	again := e.Steps()
	assert.Equal(t, 3.0, again[0].Limits[0].Threshold)
	assert.Zero(t, again[0].T0)

	assert.Contains(t, e.Configs()[0].String(), "until voltage_V=3")
}

func TestExperiment_AddStepRejects(t *testing.T) {
	e := New()
	assert.ErrorIs(t, e.AddStep("resistance_Ohm", 1, sim.TSpan{Max: 1, Dt: 1}), dynamo.ErrConfig)
	assert.ErrorIs(t, e.AddStep(CurrentA, 1, sim.TSpan{Max: 1, Dt: 0}), dynamo.ErrConfig)
	assert.ErrorIs(t, e.AddStep(CurrentA, 1, sim.TSpan{Max: 1, Dt: 1}, sim.Limit{Name: "soc"}), dynamo.ErrUnknownObservable)
	assert.Zero(t, e.Len())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cccv.yaml")
	src := `
steps:
  - mode: current_C
    value: 0.5
    tspan: {max: 7200, dt: 60}
    limits:
      - {name: voltage_V, threshold: 4.2}
  - mode: voltage_V
    value: 4.2
    tspan: {max: 3600, dt: 60}
    limits:
      - {name: current_C, threshold: 0.05}
    solver: {rtol: 1e-5}
  - mode: current_A
    value: "0"
    tspan: {max: 600, dt: 60}
t_shift: 0.01
reset_state: false
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	e, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cccv", e.Name)
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, sim.RunOptions{ResetState: false, TShift: 0.01}, e.RunOptions())

	steps := e.Steps()
	assert.Equal(t, []sim.Limit{{Name: sim.CurrentC, Threshold: 0.05}}, steps[1].Limits)
	assert.Equal(t, 1e-5, steps[1].Solver.RTol)
	assert.Equal(t, 0.5, steps[0].BC.Target(0))

	require.NoError(t, os.WriteFile(path, []byte("steps: []\n"), 0644))
	_, err = Load(path)
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestParseLimit(t *testing.T) {
	l, err := ParseLimit("voltage_V=3.0")
	require.NoError(t, err)
	assert.Equal(t, sim.Limit{Name: sim.VoltageV, Threshold: 3}, l)

	_, err = ParseLimit("voltage_V")
	assert.ErrorIs(t, err, dynamo.ErrConfig)
	_, err = ParseLimit("soc=0.1")
	assert.ErrorIs(t, err, dynamo.ErrUnknownObservable)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"p2d", "spm"}, r.ListModels())

	for _, name := range r.ListModels() {
		m, err := r.NewPresetModel(name, config.DefaultPreset)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name())
		assert.Positive(t, m.Size())
	}

	_, err := r.NewModel("ecm", config.Params{})
	assert.EqualError(t, err, "unknown model: ecm")

	p, err := config.GetPreset("p2d", config.DefaultPreset)
	require.NoError(t, err)
	require.NoError(t, p.Set("battery.cap", -1))
	_, err = r.NewModel("p2d", p)
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestExperiment_RunsOnSPM(t *testing.T) {
	r := NewRegistry()
	m, err := r.NewPresetModel("spm", config.DefaultPreset)
	require.NoError(t, err)

	s, err := sim.New(m)
	require.NoError(t, err)
	for _, metric := range r.DefaultMetrics() {
		s.AddMetric(metric)
	}

	e := New()
	require.NoError(t, e.AddStep(CurrentC, -1, sim.TSpan{Max: 360, Dt: 60}))
	require.NoError(t, e.AddStep(CurrentA, 0, sim.TSpan{Max: 60, Dt: 30}))

	cycle, err := s.Run(context.Background(), e.Steps(), e.RunOptions())
	require.NoError(t, err)
	assert.True(t, cycle.Success())
	assert.InDelta(t, 0.1, cycle.Metrics["charge_throughput_Ah"], 1e-9)
	assert.InDelta(t, -0.1, cycle.Metrics["net_charge_Ah"], 1e-9)
	assert.Less(t, cycle.Metrics["energy_Wh"], 0.0)
	assert.Less(t, cycle.Metrics["voltage_min_V"], cycle.Metrics["voltage_max_V"])
}
