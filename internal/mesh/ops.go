package mesh

import "math"

// Grad returns the n-1 face gradients (f[i+1]-f[i])/(x[i+1]-x[i]) of the
// cell-centered values f. It serves both the Cartesian and the radial axis.
func Grad(x, f []float64) []float64 {
	if len(f) < 2 {
		return nil
	}
	return GradInto(make([]float64, len(f)-1), x, f)
}

// GradInto is Grad writing into g, which must hold len(f)-1 values.
func GradInto(g, x, f []float64) []float64 {
	for i := range g {
		g[i] = (f[i+1] - f[i]) / (x[i+1] - x[i])
	}
	return g
}

// DivX returns the Cartesian divergence of the n+1 face fluxes.
func DivX(minus, plus, flux []float64) []float64 {
	d := make([]float64, len(minus))
	for i := range d {
		d[i] = (flux[i+1] - flux[i]) / (plus[i] - minus[i])
	}
	return d
}

// DivR returns the spherical divergence 1/r² d(r² f)/dr of the n+1 face
// fluxes.
func DivR(minus, plus, flux []float64) []float64 {
	return DivRInto(make([]float64, len(minus)), minus, plus, flux)
}

// DivRInto is DivR writing into d.
func DivRInto(d, minus, plus, flux []float64) []float64 {
	for i := range d {
		rm, rp := minus[i], plus[i]
		r := 0.5 * (rm + rp)
		d[i] = (rp*rp*flux[i+1] - rm*rm*flux[i]) / (r * r * (rp - rm))
	}
	return d
}

// IntX integrates cell-averaged values over the Cartesian volumes.
func IntX(minus, plus, f []float64) float64 {
	sum := 0.0
	for i := range f {
		sum += f[i] * (plus[i] - minus[i])
	}
	return sum
}

// IntR integrates cell-averaged values over spherical shells.
func IntR(minus, plus, f []float64) float64 {
	sum := 0.0
	for i := range f {
		r := 0.5 * (minus[i] + plus[i])
		sum += 4 * math.Pi * r * r * f[i] * (plus[i] - minus[i])
	}
	return sum
}
