package uncmin

import "math"

var sqrtEps = math.Sqrt(epsmch)
var cubeEps = math.Pow(epsmch, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// GradApprox estimates the objective gradient by finite differences
// when no analytic gradient is provided.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
type GradApprox struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size as
	// h = RelStep * sign(x0) * abs(x0). Selected automatically by default.
	RelStep float64
	// Absolute step size to use. The RelStep is used when AbsStep is not provided.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
}

func (ga *GradApprox) absoluteStep(v float64) float64 {
	eps := sqrtEps
	if ga.Method == Central {
		eps = cubeEps
	}

	s := ga.AbsStep
	if s == 0 {
		if rel := ga.RelStep; rel != 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		} else {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
	}
	// Guard against steps vanishing in the floating point representation.
	if d := (v + s) - v; d == 0 {
		s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
	}
	return s
}

// estimate writes the approximate gradient of fun at x into g, reusing the
// known value f0 = fun(x) for the forward method. The x slice is perturbed
// in place and restored before return. It reports the number of extra
// objective evaluations spent.
func (ga *GradApprox) estimate(fun Objective, x []float64, f0 float64, g []float64) (evals int) {

	if len(g) < len(x) {
		panic("bound check error")
	}

	for i, t := range x {
		s := ga.absoluteStep(t)
		if ga.Method == Central {
			s = math.Abs(s)
			x[i] = t - s
			f1 := fun(x)
			x[i] = t + s
			f2 := fun(x)
			g[i] = (f2 - f1) / (2 * s)
			evals += 2
		} else {
			x[i] = t + s
			g[i] = (fun(x) - f0) / s
			evals++
		}
		x[i] = t
	}
	return
}
