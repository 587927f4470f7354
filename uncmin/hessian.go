// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrSizeMismatch reports a warm-start buffer whose length disagrees
// with the compressed-Hessian size derived from the problem dimension.
var ErrSizeMismatch = errors.New("compressed hessian size mismatch")

// HessianSize returns the length of the compressed-Hessian buffer for
// problem dimension n: the n(n+1)/2 packed entries of the symmetric
// approximation plus 6n scratch slots used by the update and
// line-search routines.
func HessianSize(n int) int {
	return n * (n + 13) / 2
}

// hessian is the compressed storage of the Hessian approximation B.
//
// The packed region buf[:n(n+1)/2] holds the 𝐋𝐃𝐋ᵀ factorization of B
// column-wise dense as strict lower triangular 𝐋 with 𝐃 in its diagonal
// elements (𝐋 has unit diagonal). The remaining 6n entries are per-run
// scratch; only the packed region is meaningful across calls.
type hessian struct {
	n   int
	buf []float64
}

// packed offset of the diagonal element of column j.
func (h *hessian) diag(j int) int {
	return j*h.n - j*(j-1)/2
}

// at returns Bᵢⱼ's factor slot for i ≥ j: element 𝐋ᵢⱼ (or 𝐃ⱼ when i = j).
func (h *hessian) at(i, j int) float64 {
	return h.buf[h.diag(j)+i-j]
}

func (h *hessian) packed() []float64 {
	return h.buf[:h.n*(h.n+1)/2]
}

func (h *hessian) scratch() []float64 {
	return h.buf[h.n*(h.n+1)/2:]
}

// alloc creates an identity-initialized compressed Hessian for dimension n.
func allocHessian(n int) hessian {
	h := hessian{n: n, buf: make([]float64, HessianSize(n))}
	h.reset()
	return h
}

// importHessian copies a caller-supplied compressed buffer.
// The buffer is borrowed: the packed factor is copied in, the scratch
// region starts zeroed regardless of the input content.
func importHessian(n int, buf []float64) (hessian, error) {
	if len(buf) != HessianSize(n) {
		return hessian{}, ErrSizeMismatch
	}
	h := hessian{n: n, buf: make([]float64, HessianSize(n))}
	copy(h.packed(), buf)
	return h, nil
}

// export returns an owned copy of the buffer for later warm starts.
func (h *hessian) export() []float64 {
	out := make([]float64, len(h.buf))
	copy(out, h.buf)
	return out
}

// reset restores the factor to identity: 𝐋 = 𝐈, 𝐃 = 𝐈.
func (h *hessian) reset() {
	l, n := h.packed(), h.n
	dzero(l)
	for j := 0; j < n; j++ {
		l[h.diag(j)] = one
	}
}

// scaleDiag multiplies 𝐃 by theta.
func (h *hessian) scaleDiag(theta float64) {
	l, n := h.packed(), h.n
	for j := 0; j < n; j++ {
		l[h.diag(j)] *= theta
	}
}

// solveDir solves B·d = -g through the 𝐋𝐃𝐋ᵀ factor,
// producing the quasi-Newton descent direction in d.
func (h *hessian) solveDir(g, d []float64) {
	l, n := h.packed(), h.n
	if n > len(g) || n > len(d) {
		panic("bound check error")
	}

	for i := 0; i < n; i++ {
		d[i] = -g[i]
	}

	// Forward solve 𝐋v = -g (unit diagonal).
	ij := 0
	for i := 0; i < n; i++ {
		v := d[i]
		for j := i + 1; j < n; j++ {
			ij++
			d[j] -= v * l[ij]
		}
		ij++
	}

	// Diagonal solve 𝐃w = v.
	for i, k := 0, 0; i < n; i++ {
		d[i] /= l[k]
		k += n - i
	}

	// Back solve 𝐋ᵀd = w.
	for i := n - 2; i >= 0; i-- {
		k := h.diag(i)
		sm := zero
		for j := i + 1; j < n; j++ {
			sm += l[k+j-i] * d[j]
		}
		d[i] -= sm
	}
}

// mulVec computes y = B·v = 𝐋𝐃𝐋ᵀv.
func (h *hessian) mulVec(v, y []float64) {
	l, n := h.packed(), h.n
	if n > len(v) || n > len(y) {
		panic("bound check error")
	}

	// 𝐋ᵀv
	for i, k := 0, 0; i < n; i++ {
		k++
		sm := zero
		for _, v := range v[i+1 : n] {
			sm += l[k] * v
			k++
		}
		y[i] = v[i] + sm
	}
	// 𝐃𝐋ᵀv
	for i, k := 0, 0; i < n; i++ {
		y[i] = l[k] * y[i]
		k += n - i
	}
	// 𝐋𝐃𝐋ᵀv
	for i := n - 1; i >= 0; i-- {
		k := i
		sm := zero
		for j, y := range y[:i] {
			sm += l[k] * y
			k += n - 1 - j
		}
		y[i] += sm
	}
}

// Sym reconstructs the dense symmetric approximation B = 𝐋𝐃𝐋ᵀ.
func (h *hessian) Sym() *mat.SymDense {
	n := h.n
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// Bᵢⱼ = ∑ₖ 𝐋ᵢₖ𝐃ₖ𝐋ⱼₖ (k ≤ i ≤ j, 𝐋ₖₖ = 1)
			sm := zero
			for k := 0; k <= i; k++ {
				li := one
				if i > k {
					li = h.at(i, k)
				}
				lj := one
				if j > k {
					lj = h.at(j, k)
				}
				sm += li * h.at(k, k) * lj
			}
			sym.SetSym(i, j, sm)
		}
	}
	return sym
}
