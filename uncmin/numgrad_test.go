// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradApprox(t *testing.T) {

	fun := func(x []float64) float64 { return x[0]*x[0] + 3*x[1]*x[1] }
	x := []float64{1, -2}
	want := []float64{2, -12}

	g := make([]float64, 2)

	forward := &GradApprox{Method: Forward}
	evals := forward.estimate(fun, x, fun(x), g)
	require.Equal(t, 2, evals)
	assert.InDelta(t, want[0], g[0], 1e-5)
	assert.InDelta(t, want[1], g[1], 1e-5)

	central := &GradApprox{Method: Central}
	evals = central.estimate(fun, x, fun(x), g)
	require.Equal(t, 4, evals)
	assert.InDelta(t, want[0], g[0], 1e-8)
	assert.InDelta(t, want[1], g[1], 1e-8)

	// The probe point is restored exactly.
	assert.Equal(t, []float64{1, -2}, x)
}

func TestGradApproxStep(t *testing.T) {

	ga := &GradApprox{Method: Forward}
	assert.Equal(t, sqrtEps, ga.absoluteStep(0.5))
	assert.Equal(t, -2*sqrtEps, ga.absoluteStep(-2))

	ga = &GradApprox{Method: Forward, AbsStep: 1e-3}
	assert.Equal(t, 1e-3, ga.absoluteStep(7))

	ga = &GradApprox{Method: Forward, RelStep: 1e-4}
	assert.InDelta(t, 3e-4, ga.absoluteStep(3), 1e-12)

	// Degenerate relative steps fall back to the automatic choice.
	ga = &GradApprox{Method: Forward, RelStep: 1e-30}
	assert.Equal(t, sqrtEps, ga.absoluteStep(1))
}
