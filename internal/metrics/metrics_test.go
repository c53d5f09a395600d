package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/batsim/internal/sim"
)

func sample(t, amps, volts float64) sim.Observables {
	return sim.NewObservables(t, amps, volts, 1)
}

func TestChargeAndEnergy(t *testing.T) {
	throughput := NewChargeThroughput()
	net := NewNetCharge()
	energy := NewEnergy()
	moved := NewEnergyThroughput()
	all := []sim.Metric{throughput, net, energy, moved}

	// one hour of 1 A discharge at 3.6 V, then one hour of 0.5 A charge at 4 V
	obs := []sim.Observables{
		sample(0, -1, 3.6),
		sample(3600, -1, 3.6),
		sample(3600, 0.5, 4),
		sample(7200, 0.5, 4),
	}
	for _, o := range obs {
		for _, m := range all {
			m.Observe(o)
		}
	}

	tests := []struct {
		m    sim.Metric
		want float64
	}{
		{throughput, 1.5},
		{net, -0.5},
		{energy, -3.6 + 2},
		{moved, 3.6 + 2},
	}
	for _, tt := range tests {
		if got := tt.m.Value(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: expected %g, got %g", tt.m.Name(), tt.want, got)
		}
	}

	for _, m := range all {
		m.Reset()
		if m.Value() != 0 {
			t.Errorf("%s: expected zero after reset, got %g", m.Name(), m.Value())
		}
	}
}

func TestVoltageMetrics(t *testing.T) {
	lo, hi := NewVoltageMin(), NewVoltageMax()
	window := NewVoltageWindow(3.0, 4.2)

	for i, v := range []float64{3.7, 4.3, 2.9, 3.5} {
		o := sample(float64(i), 0, v)
		lo.Observe(o)
		hi.Observe(o)
		window.Observe(o)
	}

	if lo.Value() != 2.9 {
		t.Errorf("expected min 2.9, got %g", lo.Value())
	}
	if hi.Value() != 4.3 {
		t.Errorf("expected max 4.3, got %g", hi.Value())
	}
	if window.Value() != 0.5 {
		t.Errorf("expected half the samples inside the window, got %g", window.Value())
	}

	window.Reset()
	if window.Value() != 1 {
		t.Errorf("expected empty window to be 1, got %g", window.Value())
	}
}

func TestRMSCurrent(t *testing.T) {
	m := NewRMSCurrent()
	if m.Value() != 0 {
		t.Error("expected zero before any sample")
	}
	m.Observe(sample(0, 3, 4))
	m.Observe(sample(1, -4, 4))
	want := math.Sqrt(12.5)
	if math.Abs(m.Value()-want) > 1e-12 {
		t.Errorf("expected %g, got %g", want, m.Value())
	}
}

type fixedPoster struct{ an, ca float64 }

func (p fixedPoster) Post(*sim.Step, float64, []float64, []float64) (*sim.Profiles, error) {
	return &sim.Profiles{FaradaicAn: p.an, FaradaicCa: p.ca}, nil
}

func TestChargeBalance(t *testing.T) {
	sol := &sim.StepSolution{
		T:           []float64{0, 1},
		Y:           [][]float64{{0}, {0}},
		Yp:          [][]float64{{0}, {0}},
		Observables: []sim.Observables{sample(0, -2, 3.6), sample(1, -2, 3.6)},
	}

	got, err := ChargeBalance(fixedPoster{an: 2, ca: -2}, sol, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("expected a balanced cell, got %g", got)
	}

	got, err = ChargeBalance(fixedPoster{an: 2.02, ca: -2}, sol, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-0.01) > 1e-12 {
		t.Errorf("expected 1%% mismatch, got %g", got)
	}

	sol.Observables = nil
	if _, err := ChargeBalance(fixedPoster{}, sol, 1e-3); err == nil {
		t.Error("expected an error without observables")
	}
}
