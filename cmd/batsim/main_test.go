package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

func TestResolveParams_Overrides(t *testing.T) {
	overrides = []string{"battery.cap=2.5", "anode.material=GraphiteFast"}
	defer func() { overrides = nil }()

	p, err := resolveParams("spm")
	require.NoError(t, err)

	v, ok := p.Get("battery.cap")
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
	v, _ = p.Get("anode.material")
	assert.Equal(t, "GraphiteFast", v)

	overrides = []string{"battery.cap"}
	_, err = resolveParams("spm")
	assert.Error(t, err)

	overrides = []string{"nowhere.cap=1"}
	_, err = resolveParams("spm")
	assert.ErrorIs(t, err, dynamo.ErrConfig)
}

func TestLoadExperiment_FromFlags(t *testing.T) {
	mode, value, duration, dt = "current_C", "-0.5", 600, 60
	limits = []string{"voltage_V=3.0"}
	defer func() { limits = nil }()

	e, err := loadExperiment()
	require.NoError(t, err)
	require.Equal(t, 1, e.Len())
	step := e.Steps()[0]
	assert.Equal(t, []sim.Limit{{Name: sim.VoltageV, Threshold: 3}}, step.Limits)
	assert.Equal(t, -0.5, step.BC.Target(0))
	assert.Equal(t, []string{"current_C=-0.5 for 600s every 60s until voltage_V=3"}, describeSteps(e))
}
