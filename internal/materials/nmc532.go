package materials

import "math"

// NMC532Fast uses polynomial fits for the potential, diffusivity, and
// exchange current density of LiNi0.5Mn0.3Co0.2O2.
type NMC532Fast struct {
	AlphaA float64
	AlphaC float64
	LiMax  float64
}

func NewNMC532Fast(alphaA, alphaC, liMax float64) *NMC532Fast {
	return &NMC532Fast{AlphaA: alphaA, AlphaC: alphaC, LiMax: liMax}
}

var (
	nmcDs = []float64{
		-2.509010843479270e+2, 2.391026725259970e+3, -4.868420267611360e+3,
		-8.331104102921070e+1, 1.057636028329000e+4, -1.268324548348120e+4,
		5.016272167775530e+3, 9.824896659649480e+2, -1.502439339070900e+3,
		4.723709304247700e+2, -6.526092046397090e+1,
	}
	nmcI0 = []float64{
		1.650452829641290e+1, -7.523567141488800e+1, 1.240524690073040e+2,
		-9.416571081287610e+1, 3.249768821737960e+1, -3.585290065824760e+0,
	}
	nmcEeqA = []float64{
		-3.640117692001490e+3, 1.317657544484270e+4, -1.455742062291360e+4,
		-1.571094264365090e+3, 1.265630978512400e+4, -2.057808873526350e+3,
		-1.074374333186190e+4, 8.698112755348720e+3, -8.297904604107030e+2,
		-2.073765547574810e+3, 1.190223421193310e+3, -2.724851668445780e+2,
		2.723409218042130e+1, -4.158276603609060e+0, 5.314735633000300e+0,
	}
	nmcEeqB = [3]float64{-5.573191762723310e-4, 6.560240842659690e+0, 4.148209275061330e+1}
)

func (n *NMC532Fast) Ds(x, T, fluxdir float64) float64 {
	return arrhenius(T) * 2.25 * math.Pow(10, polyval(nmcDs, x))
}

func (n *NMC532Fast) I0(x, cLi, T, fluxdir float64) (float64, error) {
	return 9 * math.Pow(cLi/1.2, n.AlphaA) * polyval(nmcI0, x) * arrhenius(T), nil
}

func (n *NMC532Fast) Eeq(x float64) float64 {
	return nmcEeqB[0]*math.Exp(nmcEeqB[1]*math.Pow(x, nmcEeqB[2])) + polyval(nmcEeqA, x)
}

func (n *NMC532Fast) Mhyst(x float64) float64 {
	return 0.03
}
