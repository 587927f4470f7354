// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

// Subroutine updateCorrection
//
// This subroutine refines the compressed approximation B with the
// secant pair of the latest accepted move:
//   - s = xₖ₊₁ - xₖ = λₖdₖ
//   - y = gₖ₊₁ - gₖ
//
// The rank-2 BFGS correction
//
//	Bₖ₊₁ = Bₖ + yyᵀ/(sᵀy) - BₖssᵀBₖ/(sᵀBₖs)
//
// is applied as two composite rank-1 modifications of the 𝐋𝐃𝐋ᵀ factor,
// which preserves symmetry and keeps 𝐃 > 0 whenever sᵀy > 0.
func updateCorrection(loc *iterLoc, spec *iterSpec, ctx *iterCtx) {

	n := spec.n

	d := ctx.d // s = λₖdₖ scaled in place
	r := ctx.y // y = gₖ₊₁ - gₖ

	if len(r) < len(loc.g) {
		panic("bound check error")
	}

	for i, g := range loc.g {
		r[i] = g - ctx.gOld[i]
	}

	rr := ddot(n, r, 1, r, 1)            // yᵀy
	dr := (ctx.gd - ctx.gdOld) * ctx.stp // sᵀy
	y2 := -ctx.gdOld * ctx.stp           // -λₖgₖᵀdₖ > 0
	if ctx.stp != one {
		dscal(n, ctx.stp, d, 1) // s = λₖdₖ
	}

	// Skip the correction when the curvature condition sᵀy > 0 only holds
	// at roundoff level: the secant pair carries no reliable curvature and
	// would corrupt the approximation.
	if dr <= epsmch*y2 {
		ctx.skips++
		if log := spec.logger; log.enable(LogEval) {
			log.log("Skipping BFGS update. dr: %f, y2: %f\n", dr, y2)
		}
		return
	}

	// Rescale a fresh identity factor by θ = yᵀy/sᵀy before the first
	// correction so the eigenvalue scale of B matches the observed curvature.
	if ctx.fresh {
		ctx.scaleDiag(rr / dr)
		ctx.fresh = false
	}

	// Bₖs through the factor
	ctx.mulVec(d, ctx.bs)
	sbs := ddot(n, d, 1, ctx.bs, 1) // sᵀBₖs
	if sbs <= zero {
		// The factor lost positive-definiteness to rounding; restart it.
		ctx.reset()
		ctx.fresh = true
		ctx.skips++
		return
	}

	l := ctx.packed()
	compositeT(uint(n), l, r, +one/dr, nil)           // + yyᵀ/sᵀy
	compositeT(uint(n), l, ctx.bs, -one/sbs, ctx.wrk) // - BₖssᵀBₖ/sᵀBₖs
	ctx.updates++
}

// compositeT compute 𝐋𝐃𝐋ᵀ factorization for a rank-1 modified matrix 𝐀߬ = 𝐀 + σ𝐳𝐳ᵀ = ∑ 𝐥߬ᵢ𝐝߬ᵢ𝐥߬ᵢᵀ
//   - 𝐀 is n × n positive definite symmetric matrix
//   - 𝐋 = [𝐥₁···𝐥ₙ] is lower triangle matrix with unit diagonal elements
//   - 𝐃 = (𝐝₁···𝐝ₙ) is diagonal matrix with positive diagonal elements
//   - 𝐀߬ is a positive definite matrix with rank-one modification
//   - σ is scalar and 𝐳 is a vector (destroyed on exit)
//
// Dieter Kraft, 'A Software Package for Sequential Quadratic Programming', 1988.
// Chapters 2.32.
func compositeT(n uint, a, z []float64, sigma float64, w []float64) {

	// if σ = 0 then terminate
	if sigma == zero {
		return
	}

	t := one / sigma
	ij := uint(0)

	if n <= 0 || n > uint(len(z)) {
		panic("bound check error")
	}

	// if σ < 0 construct 𝐰 = 𝐳 - 𝐋⁻¹𝐳
	if sigma <= zero {

		if n > uint(len(w)) {
			panic("bound check error")
		}

		copy(w, z)
		// solve 𝐋𝐯 = 𝐳 and update 𝐭ᵢ₊₁ = 𝐭ᵢ + 𝐯ᵢ²/dᵢ
		for i := uint(0); i < n; i++ {
			v := w[i]
			t += v * v / a[ij]
			for j := i + 1; j < n; j++ {
				ij++
				w[j] -= v * a[ij]
			}
			ij++
		}
		// if 𝐭ₙ ≥ 0 then set 𝐭ₙ = ε/σ
		if t >= zero {
			t = epsmch / sigma
		}
		// recompute 𝐭ᵢ₋₁ = 𝐭ᵢ - 𝐯ᵢ²/𝐝ᵢ
		for j := int(n) - 1; j >= 0; j-- {
			u := w[j]
			w[j] = t
			ij -= n - uint(j)
			t -= u * u / a[ij]
		}
	}

	ij = 0
	for i := uint(0); i < n; i++ {
		v := z[i]
		delta := v / a[ij]

		var tp float64
		if sigma < zero {
			tp = w[i] // 𝐭ᵢ₊₁ = 𝐰ᵢ₊₁
		} else {
			tp = t + delta*v // 𝐭ᵢ₊₁ = 𝐭ᵢ + 𝐯ᵢ²/𝐝ᵢ
		}

		alpha := tp / t // 𝐚ᵢ = 𝐭ᵢ₊₁ / 𝐭ᵢ
		a[ij] *= alpha  // 𝐝ᵢ = 𝐚ᵢ𝐝ᵢ₊₁

		if i == n-1 {
			break
		}

		beta := delta / tp // 𝐛ᵢ = (𝐯ᵢ / 𝐝ᵢ) / 𝐭ᵢ
		if alpha > 4.0 {
			gamma := t / tp
			for j := i + 1; j < n; j++ {
				ij++
				u := a[ij]                  // 𝐥ᵢ
				a[ij] = gamma*u + beta*z[j] // 𝐥߬ᵢ = (𝐭ᵢ / 𝐭ᵢ₊₁)𝐥ᵢ + 𝐛ᵢ𝐳⁽ⁱ⁾ᵢ
				z[j] -= v * u               // 𝐳⁽ⁱ⁺¹⁾ = 𝐳⁽ⁱ⁾ - 𝐯ᵢ𝐥ᵢ
			}
		} else {
			for j := i + 1; j < n; j++ {
				ij++
				z[j] -= v * a[ij]    // 𝐳⁽ⁱ⁺¹⁾ = 𝐳⁽ⁱ⁾ - 𝐯ᵢ𝐥ᵢ
				a[ij] += beta * z[j] // 𝐥߬ᵢ = 𝐥ᵢ + 𝐛ᵢ𝐳⁽ⁱ⁺¹⁾ᵢ
			}
		}
		ij++
		t = tp
	}
}
