package integrators

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/batsim/internal/dynamo"
)

// linearSolver holds an n×n iteration matrix, factors it, and solves in
// place.
type linearSolver interface {
	Zero()
	Set(i, j int, v float64)
	// Rows returns the row range [lo, hi] that column j may touch.
	Rows(j int) (lo, hi int)
	// Group is the number of columns that can be perturbed together.
	Group() int
	Factor() error
	Solve(b []float64) error
}

func newLinearSolver(o Options, n int) (linearSolver, error) {
	switch o.LinearSolver {
	case LinearBand:
		return newBandLU(n, o.LBand, o.UBand), nil
	case LinearDense:
		return newDenseLU(n), nil
	}
	return nil, fmt.Errorf("%w: unknown linear solver %q", dynamo.ErrConfig, o.LinearSolver)
}

// bandLU is an LU factorization with partial pivoting for banded
// matrices. Row i is stored with column j at i*w + j-i+kl, leaving room
// for the kl extra upper diagonals that pivoting fills in.
type bandLU struct {
	n, kl, ku int
	w         int
	ab        []float64
	piv       []int
}

func newBandLU(n, kl, ku int) *bandLU {
	w := 2*kl + ku + 1
	return &bandLU{
		n:   n,
		kl:  kl,
		ku:  ku,
		w:   w,
		ab:  make([]float64, n*w),
		piv: make([]int, n),
	}
}

func (b *bandLU) at(i, j int) *float64 { return &b.ab[i*b.w+j-i+b.kl] }

func (b *bandLU) Zero() {
	for i := range b.ab {
		b.ab[i] = 0
	}
}

func (b *bandLU) Set(i, j int, v float64) {
	if j-i > b.ku || i-j > b.kl {
		return
	}
	*b.at(i, j) = v
}

func (b *bandLU) Rows(j int) (int, int) {
	return max(0, j-b.ku), min(b.n-1, j+b.kl)
}

func (b *bandLU) Group() int { return b.kl + b.ku + 1 }

func (b *bandLU) Factor() error {
	n, kl, ku := b.n, b.kl, b.ku
	for k := 0; k < n; k++ {
		last := min(n-1, k+kl)
		p := k
		big := math.Abs(*b.at(k, k))
		for i := k + 1; i <= last; i++ {
			if v := math.Abs(*b.at(i, k)); v > big {
				p, big = i, v
			}
		}
		b.piv[k] = p
		if big == 0 {
			return fmt.Errorf("%w: zero pivot in column %d", dynamo.ErrSingular, k)
		}

		right := min(n-1, k+kl+ku)
		if p != k {
			for c := k; c <= right; c++ {
				pk, pp := b.at(k, c), b.at(p, c)
				*pk, *pp = *pp, *pk
			}
		}

		pivot := *b.at(k, k)
		for i := k + 1; i <= last; i++ {
			lik := b.at(i, k)
			if *lik == 0 {
				continue
			}
			*lik /= pivot
			l := *lik
			for c := k + 1; c <= right; c++ {
				*b.at(i, c) -= l * *b.at(k, c)
			}
		}
	}
	return nil
}

func (b *bandLU) Solve(x []float64) error {
	n, kl, ku := b.n, b.kl, b.ku
	for k := 0; k < n; k++ {
		if p := b.piv[k]; p != k {
			x[k], x[p] = x[p], x[k]
		}
		for i := k + 1; i <= min(n-1, k+kl); i++ {
			x[i] -= *b.at(i, k) * x[k]
		}
	}
	for i := n - 1; i >= 0; i-- {
		s := x[i]
		for c := i + 1; c <= min(n-1, i+kl+ku); c++ {
			s -= *b.at(i, c) * x[c]
		}
		x[i] = s / *b.at(i, i)
	}
	return nil
}

// denseLU wraps gonum's LU for small systems and for checking the band
// solver.
type denseLU struct {
	n   int
	a   *mat.Dense
	lu  mat.LU
	rhs *mat.VecDense
	x   *mat.VecDense
}

func newDenseLU(n int) *denseLU {
	return &denseLU{
		n:   n,
		a:   mat.NewDense(n, n, nil),
		rhs: mat.NewVecDense(n, nil),
		x:   mat.NewVecDense(n, nil),
	}
}

func (d *denseLU) Zero()                   { d.a.Zero() }
func (d *denseLU) Set(i, j int, v float64) { d.a.Set(i, j, v) }
func (d *denseLU) Rows(int) (int, int)     { return 0, d.n - 1 }
func (d *denseLU) Group() int              { return 1 }

func (d *denseLU) Factor() error {
	d.lu.Factorize(d.a)
	if math.IsInf(d.lu.Cond(), 1) {
		return fmt.Errorf("%w: dense matrix is singular", dynamo.ErrSingular)
	}
	return nil
}

func (d *denseLU) Solve(b []float64) error {
	for i, v := range b {
		d.rhs.SetVec(i, v)
	}
	if err := d.lu.SolveVecTo(d.x, false, d.rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("%w: %v", dynamo.ErrSingular, err)
		}
	}
	for i := range b {
		b[i] = d.x.AtVec(i)
	}
	return nil
}
