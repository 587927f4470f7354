// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeT(t *testing.T) {

	// A = I + zzᵀ
	h := allocHessian(3)
	z := []float64{1, 2, 3}
	compositeT(3, h.packed(), z, one, nil)

	want := [3][3]float64{
		{2, 2, 3},
		{2, 5, 6},
		{3, 6, 10},
	}
	sym := h.Sym()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want[i][j], sym.At(i, j), 1e-12)
		}
	}

	// A - 0.1×uuᵀ stays positive definite
	u := []float64{1, 0, 1}
	w := make([]float64, 3)
	compositeT(3, h.packed(), u, -0.1, w)

	sym = h.Sym()
	for i := 0; i < 3; i++ {
		assert.Greater(t, h.at(i, i), zero)
		for j := 0; j < 3; j++ {
			down := 0.0
			if i != 1 && j != 1 {
				down = 0.1
			}
			assert.InDelta(t, want[i][j]-down, sym.At(i, j), 1e-12)
		}
	}
}

func updateHarness(n int) (*iterLoc, *iterSpec, *iterCtx) {
	spec := &iterSpec{
		n:      n,
		logger: Logger{Level: LogNoop, Msg: io.Discard, Out: io.Discard},
	}
	ctx := &iterCtx{hessian: allocHessian(n)}
	ctx.bindScratch()
	loc := &iterLoc{
		x: make([]float64, n),
		g: make([]float64, n),
	}
	return loc, spec, ctx
}

func TestUpdateSecant(t *testing.T) {

	loc, spec, ctx := updateHarness(2)

	// Consistent secant pair with s = d (λ = 1) and y = g - gOld.
	s := []float64{1, 0.5}
	gOld := []float64{-1, -2}
	g := []float64{0.2, 0.3}

	copy(ctx.d, s)
	copy(ctx.gOld, gOld)
	copy(loc.g, g)
	ctx.stp = one
	ctx.gd = ddot(2, g, 1, s, 1)
	ctx.gdOld = ddot(2, gOld, 1, s, 1)
	ctx.fresh = false

	updateCorrection(loc, spec, ctx)
	require.Equal(t, 1, ctx.updates)
	require.Equal(t, 0, ctx.skips)

	// The corrected factor satisfies the secant condition B₁s = y.
	y := []float64{g[0] - gOld[0], g[1] - gOld[1]}
	bs := make([]float64, 2)
	ctx.mulVec(s, bs)
	assert.InDelta(t, y[0], bs[0], 1e-12)
	assert.InDelta(t, y[1], bs[1], 1e-12)

	// The factor stays positive definite.
	for i := 0; i < 2; i++ {
		assert.Greater(t, ctx.at(i, i), zero)
	}
}

func TestUpdateFirstScale(t *testing.T) {

	loc, spec, ctx := updateHarness(2)

	s := []float64{1, 0}
	gOld := []float64{-3, 0}
	g := []float64{0, 0} // y = (3, 0)

	copy(ctx.d, s)
	copy(ctx.gOld, gOld)
	copy(loc.g, g)
	ctx.stp = one
	ctx.gd = ddot(2, g, 1, s, 1)
	ctx.gdOld = ddot(2, gOld, 1, s, 1)
	ctx.fresh = true

	updateCorrection(loc, spec, ctx)
	require.Equal(t, 1, ctx.updates)
	require.False(t, ctx.fresh)

	// The untouched axis keeps the θ = yᵀy/sᵀy diagonal scaling,
	// while the updated axis satisfies the secant condition.
	assert.InDelta(t, 3.0, ctx.at(1, 1), 1e-12)
	bs := make([]float64, 2)
	ctx.mulVec(s, bs)
	assert.InDelta(t, 3.0, bs[0], 1e-12)
	assert.InDelta(t, 0.0, bs[1], 1e-12)
}

func TestUpdateCurvatureSkip(t *testing.T) {

	loc, spec, ctx := updateHarness(2)

	// Zero curvature: g did not change over the step.
	s := []float64{1, 1}
	gOld := []float64{-1, -1}

	copy(ctx.d, s)
	copy(ctx.gOld, gOld)
	copy(loc.g, gOld)
	ctx.stp = one
	ctx.gd = ddot(2, gOld, 1, s, 1)
	ctx.gdOld = ctx.gd
	ctx.fresh = false

	before := make([]float64, len(ctx.packed()))
	copy(before, ctx.packed())

	updateCorrection(loc, spec, ctx)
	require.Equal(t, 0, ctx.updates)
	require.Equal(t, 1, ctx.skips)

	// A skipped update leaves the factor bit-identical.
	assert.Equal(t, before, ctx.packed())
}
