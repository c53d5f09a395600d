package materials

import "math"

// Gen2Electrolyte is 1.2 M LiPF6 in EC:EMC (3:7 by weight).
type Gen2Electrolyte struct{}

func NewGen2Electrolyte() *Gen2Electrolyte {
	return &Gen2Electrolyte{}
}

var (
	gen2D = [3][4]float64{
		{-0.568822600, 1607.003, -24.83763, 64.07366},
		{-0.810872100, 475.2910, -24.83763, 64.07366},
		{-0.005192312, 33.43827, -24.83763, 64.07366},
	}
	gen2T0 = [3][]float64{
		{-0.0000002876102, 0.0002077407, -0.03881203},
		{0.0000011614630, -0.0008682500, 0.17772660},
		{-0.0000006766258, 0.0006389189, 0.30917610},
	}
	gen2Kappa = [4][]float64{
		{0, 0, 1.909446e-4, -8.038545e-2, 9.003410e+0},
		{-2.887587e-8, 3.483638e-5, -1.583677e-2, 3.195295e+0, -2.414638e+2},
		{1.653786e-8, -1.99876e-5, 9.071155e-3, -1.828064e+0, 1.380976e+2},
		{-2.791965e-9, 3.377143e-6, -1.532707e-3, 3.090003e-1, -2.335671e+1},
	}
)

func (e *Gen2Electrolyte) D(c, T float64) float64 {
	a := gen2D
	exponent := (a[0][0] - a[0][1]/(T-(a[0][2]+a[0][3]*c))) +
		(a[1][0]+a[1][1]/(T-(a[1][2]+a[1][3]*c)))*c +
		(a[2][0]-a[2][1]/(T-(a[2][2]+a[2][3]*c)))*c*c
	return 1e-4 * math.Pow(10, exponent)
}

func (e *Gen2Electrolyte) T0(c, T float64) float64 {
	return polyval(gen2T0[0], T)*c*c + polyval(gen2T0[1], T)*c + polyval(gen2T0[2], T)
}

func (e *Gen2Electrolyte) Kappa(c, T float64) float64 {
	kappa := 0.0
	pow := c
	for _, row := range gen2Kappa {
		kappa += polyval(row, T) * pow
		pow *= c
	}
	return kappa
}

func (e *Gen2Electrolyte) Gamma(c, T float64) float64 {
	return 0.54*math.Exp(329/T)*c*c - 0.00225*math.Exp(1360/T)*c + 0.341*math.Exp(261/T)
}
