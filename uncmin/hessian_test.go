// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestHessianSize(t *testing.T) {
	assert.Equal(t, 7, HessianSize(1))
	assert.Equal(t, 15, HessianSize(2))
	assert.Equal(t, 24, HessianSize(3))
	assert.Equal(t, 45, HessianSize(5))
	for n := 1; n <= 16; n++ {
		assert.Equal(t, n*(n+1)/2+6*n, HessianSize(n))
	}
}

func TestHessianImport(t *testing.T) {
	_, err := importHessian(3, make([]float64, 10))
	require.ErrorIs(t, err, ErrSizeMismatch)

	buf := make([]float64, HessianSize(3))
	buf[0], buf[3], buf[5] = 2, 1.5, 3
	h, err := importHessian(3, buf)
	require.NoError(t, err)

	// The packed factor is copied, the scratch region starts zeroed.
	assert.Equal(t, buf[:6], h.packed())
	assert.NotSame(t, &buf[0], &h.buf[0])
	for _, v := range h.scratch() {
		assert.Zero(t, v)
	}
}

// factor3 is a hand-built 3×3 𝐋𝐃𝐋ᵀ factor with a known dense form.
func factor3() (hessian, *mat.SymDense) {
	h := allocHessian(3)
	l := h.packed()
	l[0], l[1], l[2] = 2, 0.5, 0.25 // D₀, L₁₀, L₂₀
	l[3], l[4] = 1.5, -0.3          // D₁, L₂₁
	l[5] = 3                        // D₂
	dense := mat.NewSymDense(3, []float64{
		2.0, 1.0, 0.5,
		1.0, 2.0, -0.2,
		0.5, -0.2, 3.26,
	})
	return h, dense
}

func TestHessianSym(t *testing.T) {
	h, dense := factor3()
	sym := h.Sym()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, dense.At(i, j), sym.At(i, j), 1e-14)
		}
	}
}

func TestHessianMulVec(t *testing.T) {
	h, dense := factor3()
	v := []float64{1, -2, 0.5}

	y := make([]float64, 3)
	h.mulVec(v, y)

	var want mat.VecDense
	want.MulVec(dense, mat.NewVecDense(3, v))
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want.AtVec(i), y[i], 1e-14)
	}
}

func TestHessianSolveDir(t *testing.T) {
	h, _ := factor3()
	g := []float64{0.3, -1.1, 2.0}

	d := make([]float64, 3)
	h.solveDir(g, d)

	// The direction satisfies B·d = -g.
	bd := make([]float64, 3)
	h.mulVec(d, bd)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, -g[i], bd[i], 1e-12)
	}
}

func TestHessianReset(t *testing.T) {
	h, _ := factor3()
	h.reset()
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.Equal(t, want, h.at(i, j))
		}
	}

	h.scaleDiag(2.5)
	for j := 0; j < 3; j++ {
		assert.Equal(t, 2.5, h.at(j, j))
	}
}
