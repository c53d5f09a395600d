package materials

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/batsim/internal/dynamo"
)

// ElectrodeMaterial is the capability set every active material provides.
// fluxdir is +1 while lithiating, -1 while delithiating; materials without
// direction-dependent properties ignore it.
type ElectrodeMaterial interface {
	Ds(x, T, fluxdir float64) float64
	I0(x, cLi, T, fluxdir float64) (float64, error)
	Eeq(x float64) float64
}

// Hysteretic materials report a hysteresis magnitude and can carry the
// hysteresis extension.
type Hysteretic interface {
	Mhyst(x float64) float64
}

type ElectrolyteMaterial interface {
	D(c, T float64) float64
	T0(c, T float64) float64
	Kappa(c, T float64) float64
	Gamma(c, T float64) float64
}

var electrodes = map[string]func(alphaA, alphaC, liMax float64) ElectrodeMaterial{
	"GraphiteFast": func(a, c, m float64) ElectrodeMaterial { return NewGraphiteFast(a, c, m) },
	"NMC532Fast":   func(a, c, m float64) ElectrodeMaterial { return NewNMC532Fast(a, c, m) },
}

var electrolytes = map[string]func() ElectrolyteMaterial{
	"Gen2Electrolyte": func() ElectrolyteMaterial { return NewGen2Electrolyte() },
}

func NewElectrode(name string, alphaA, alphaC, liMax float64) (ElectrodeMaterial, error) {
	fn, ok := electrodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown material: %s", dynamo.ErrConfig, name)
	}
	return fn(alphaA, alphaC, liMax), nil
}

func NewElectrolyte(name string) (ElectrolyteMaterial, error) {
	fn, ok := electrolytes[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown material: %s", dynamo.ErrConfig, name)
	}
	return fn(), nil
}

func ListElectrodes() []string {
	names := make([]string, 0, len(electrodes))
	for name := range electrodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListElectrolytes() []string {
	names := make([]string, 0, len(electrolytes))
	for name := range electrolytes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	arrheniusRef = 303.15 // K
	activation   = 30e6   // J/kmol
)

// arrhenius scales a property measured at the reference temperature.
func arrhenius(T float64) float64 {
	return math.Exp(-activation / dynamo.R * (1/T - 1/arrheniusRef))
}

// polyval evaluates a polynomial with coefficients ordered highest power first.
func polyval(coeffs []float64, x float64) float64 {
	v := 0.0
	for _, c := range coeffs {
		v = v*x + c
	}
	return v
}
