package integrators

// hermite is the cubic Hermite interpolant of one accepted step.
type hermite struct {
	t0, t1  float64
	y0, yp0 []float64
	y1, yp1 []float64
}

func (h hermite) at(t float64) ([]float64, []float64) {
	n := len(h.y0)
	y := make([]float64, n)
	yp := make([]float64, n)

	dt := h.t1 - h.t0
	if t >= h.t1 {
		copy(y, h.y1)
		copy(yp, h.yp1)
		return y, yp
	}
	if t <= h.t0 {
		copy(y, h.y0)
		copy(yp, h.yp0)
		return y, yp
	}

	s := (t - h.t0) / dt
	s2, s3 := s*s, s*s*s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	d00 := 6*s2 - 6*s
	d10 := 3*s2 - 4*s + 1
	d01 := -6*s2 + 6*s
	d11 := 3*s2 - 2*s

	for i := 0; i < n; i++ {
		y[i] = h00*h.y0[i] + h10*dt*h.yp0[i] + h01*h.y1[i] + h11*dt*h.yp1[i]
		yp[i] = (d00*h.y0[i]+d01*h.y1[i])/dt + d10*h.yp0[i] + d11*h.yp1[i]
	}
	return y, yp
}
