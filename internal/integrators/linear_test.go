package integrators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// bandedTestMatrix has small diagonals so partial pivoting must swap rows.
func bandedTestMatrix(n, kl, ku int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := max(0, i-kl); j <= min(n-1, i+ku); j++ {
			v := float64((i*7+j*3)%11) - 5
			if i == j {
				v = 0.01 * float64(i%3)
			}
			a.Set(i, j, v)
		}
	}
	return a
}

func TestBandLU_MatchesDense(t *testing.T) {
	for _, bw := range []struct{ n, kl, ku int }{
		{6, 1, 1},
		{9, 2, 1},
		{10, 1, 3},
		{8, 7, 7},
	} {
		a := bandedTestMatrix(bw.n, bw.kl, bw.ku)

		b := newBandLU(bw.n, bw.kl, bw.ku)
		for i := 0; i < bw.n; i++ {
			for j := 0; j < bw.n; j++ {
				if v := a.At(i, j); v != 0 {
					b.Set(i, j, v)
				}
			}
		}
		require.NoError(t, b.Factor())

		rhs := make([]float64, bw.n)
		for i := range rhs {
			rhs[i] = float64(i + 1)
		}
		x := append([]float64(nil), rhs...)
		require.NoError(t, b.Solve(x))

		var want mat.VecDense
		require.NoError(t, want.SolveVec(a, mat.NewVecDense(bw.n, rhs)))
		for i := range x {
			assert.InDelta(t, want.AtVec(i), x[i], 1e-9, "n=%d kl=%d ku=%d i=%d", bw.n, bw.kl, bw.ku, i)
		}
	}
}

func TestBandLU_Singular(t *testing.T) {
	b := newBandLU(3, 1, 1)
	b.Set(0, 0, 1)
	b.Set(1, 0, 1)
	assert.Error(t, b.Factor())
}

func TestBandLU_IgnoresOutOfBand(t *testing.T) {
	b := newBandLU(4, 1, 1)
	b.Set(0, 3, 5)
	lo, hi := b.Rows(0)
	assert.Equal(t, 0, lo)
	assert.Equal(t, 1, hi)
	assert.Equal(t, 3, b.Group())
}

func TestDenseLU_Singular(t *testing.T) {
	d := newDenseLU(2)
	d.Set(0, 0, 1)
	d.Set(0, 1, 1)
	assert.Error(t, d.Factor())
}

func TestPatternBandwidth(t *testing.T) {
	p, err := Pattern(heat(8), 0, make([]float64, 8), make([]float64, 8))
	require.NoError(t, err)

	lband, uband := PatternBandwidth(p)
	assert.Equal(t, 1, lband)
	assert.Equal(t, 1, uband)
	assert.Equal(t, 1.0, p.At(3, 3))
	assert.Equal(t, 0.0, p.At(0, 1))
}
