// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import (
	"math"
)

const (
	searchNoBnd = 1.0e+10
	searchAlpha = 1.0e-3
	searchBeta  = 0.9
	searchEps   = 0.1
)

const (
	searchBackExit = 20
	searchBackSlow = 10
)

// Perform one round of the line search along dₖ.
// The λₖ starts with a bounded trial steplength and ensure fₖ₊₁ = f(xₖ + λₖdₖ), gₖ₊₁ = f′ₖ₊₁ satisfies:
//   - sufficient decrease condition: fₖ₊₁ ≤ fₖ + ɑλₖgₖᵀdₖ (ɑ = 10⁻³)
//   - curvature condition: |gₖ₊₁ᵀdₖ| ≤ β |gₖᵀdₖ| (β = 0.9)
func performLineSearch(loc *iterLoc, spec *iterSpec, ctx *iterCtx) (info errInfo, done bool) {

	n := spec.n
	x, f, g := loc.x, loc.f, loc.g
	d, t := ctx.d, ctx.xOld

	if n < 0 || n > len(x) || n > len(d) || n > len(t) {
		panic("bound check error")
	}

	ctx.gd = ddot(n, g, 1, d, 1)
	if ctx.task == SearchStart {
		ctx.gdOld = ctx.gd
		if ctx.gd >= zero {
			// Line search is impossible when the directional derivative ≥ 0.
			return errDerivative, false
		}
	}

	ctx.stp, ctx.task = ScalarSearch(f, ctx.gd, ctx.stp, ctx.task, &ctx.searchTol, &ctx.searchCtx)
	done = ctx.task&(SearchConv|SearchWarn|SearchError) > 0

	if !done { // Try another x = λₖdₖ + xₖ
		dcopy(n, t, 1, x, 1)
		daxpy(n, ctx.stp, d, 1, x, 1)
	} else if ctx.task&SearchError > 0 {
		info = errLineSearchTol
	}
	return
}

func initLineSearch(spec *iterSpec, ctx *iterCtx) {

	ctx.dNorm = dnrm2(spec.n, ctx.d, 1) // ‖ d ‖₂

	if spec.search != nil {
		ctx.searchTol = *spec.search
	} else {
		ctx.searchTol = SearchTol{
			searchAlpha, searchBeta, searchEps, zero, searchNoBnd}
	}

	// The first trial step of a fresh factor is scaled by the direction
	// norm to avoid overshoot; a unit Newton-like step is used afterwards.
	if ctx.iter == 0 && ctx.fresh {
		ctx.stp = math.Min(one/ctx.dNorm, ctx.searchTol.Upper)
	} else {
		ctx.stp = one
	}

	ctx.numBack = 0
	ctx.task = SearchStart
	ctx.searchCtx = SearchCtx{}
}
