package materials

import (
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/dynamo"
)

// GraphiteFast uses a single smooth fit for the open-circuit potential,
// trading accuracy near the staging plateaus for evaluation speed.
type GraphiteFast struct {
	AlphaA float64
	AlphaC float64
	LiMax  float64
}

func NewGraphiteFast(alphaA, alphaC, liMax float64) *GraphiteFast {
	return &GraphiteFast{AlphaA: alphaA, AlphaC: alphaC, LiMax: liMax}
}

func (g *GraphiteFast) Ds(x, T, fluxdir float64) float64 {
	return 3e-14 * arrhenius(T)
}

func (g *GraphiteFast) I0(x, cLi, T, fluxdir float64) (float64, error) {
	if (x < 0 && g.AlphaC < 1) || (x > 1 && g.AlphaA < 1) {
		return 0, fmt.Errorf("%w: graphite x=%g", dynamo.ErrFractionRange, x)
	}

	i0 := 2.5 * 0.27 * arrhenius(T) *
		math.Pow(cLi, g.AlphaA) *
		math.Pow(g.LiMax*x, g.AlphaC) *
		math.Pow(g.LiMax-g.LiMax*x, g.AlphaA)
	return i0, nil
}

var (
	graphiteA = [19]float64{
		-1.059423355572770e-2, -1.453708425609560e-2, 9.089868397988610e-5,
		2.443615203087110e-2, -5.464261369950400e-1, 6.270508166379020e-1,
		-1.637520788053810e-2, -5.639025014475490e-1, 7.053886409518520e-2,
		-6.542365622896410e-2, -5.960370524233590e-1, 1.409966536648620e+0,
		-4.173226059293490e-2, -1.787670587868640e-1, 7.693844911793470e-2,
		-4.792178163846890e-1, 3.845707852011820e-3, 4.112633446959460e-2,
		6.594735004847470e-1,
	}
	graphiteB = [6]float64{
		-4.364293924074990e-2, -9.449231893318330e-2, -2.046776012570780e-2,
		-8.241166396760410e-2, -7.746685789572230e-2, 3.593817905677970e-2,
	}
	graphiteC = []float64{
		-1.731504647676420e+2, 8.252008712749000e+1, 1.233160814852810e+2,
		5.913206621637760e+1, 3.322960033709470e+1, 3.437968012320620e+0,
		-6.906367679257650e+1, -1.228217254296760e+1, -5.037944982759270e+1,
	}
	graphiteD = [19]float64{
		1.059423355572770e-2, -1.453708425609560e-2, 9.089868397988610e-5,
		2.443615203087110e-2, -5.464261369950400e-1, 6.270508166379020e-1,
		-1.637520788053810e-2, -5.639025014475490e-1, 7.053886409518520e-2,
		-6.542365622896410e-2, -5.960370524233590e-1, 1.409966536648620e+0,
		-4.173226059293490e-2, -1.787670587868640e-1, 7.693844911793470e-2,
		-4.792178163846890e-1, 3.845707852011820e-3, 4.112633446959460e-2,
		6.594735004847470e-1,
	}
	graphiteF = -1.02956203215198
)

// tanhSeries sums c[k]*tanh((x+c[k+1])/c[k+2]) over coefficient triples.
func tanhSeries(c []float64, x float64) float64 {
	s := 0.0
	for k := 0; k+2 < len(c); k += 3 {
		s += c[k] * math.Tanh((x+c[k+1])/c[k+2])
	}
	return s
}

// Eeq saturates to +10 V for x <= 0 and -10 V for x > 1.
func (g *GraphiteFast) Eeq(x float64) float64 {
	switch {
	case x <= 0:
		return 10
	case x > 1:
		return -10
	}

	base := tanhSeries(graphiteA[:18], x) + graphiteA[18] + tanhSeries(graphiteB[:], x)
	tail := polyval(graphiteC, x) +
		tanhSeries(graphiteD[:18], x) + graphiteD[18] +
		tanhSeries(graphiteB[:], x)

	return base + tail/(1+math.Exp(-1e2*(x+graphiteF)))
}

func (g *GraphiteFast) Mhyst(x float64) float64 {
	return 0.03
}
