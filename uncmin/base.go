// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import "math"

const (
	zero  = 0.0
	one   = 1.0
	two   = 2.0
	three = 3.0
)

// epsmch is the machine precision for float64.
var epsmch = math.Nextafter(1, 2) - 1

// Status is the terminal state of an optimization call.
type Status int

const (
	// Running the iteration is still in progress.
	Running Status = iota
	// Converged the stationarity measure dropped below the tolerance.
	Converged
	// MaxIterationsReached the iteration count budget is exhausted.
	MaxIterationsReached
	// MaxEvaluationsReached the function evaluation budget is exhausted.
	MaxEvaluationsReached
	// LineSearchStalled no acceptable step was found within the search sub-budget.
	LineSearchStalled
	// EvalFault the objective or gradient evaluator panicked.
	EvalFault
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Converged:
		return "Converged"
	case MaxIterationsReached:
		return "MaxIterationsReached"
	case MaxEvaluationsReached:
		return "MaxEvaluationsReached"
	case LineSearchStalled:
		return "LineSearchStalled"
	case EvalFault:
		return "EvalFault"
	}
	return "Unknown"
}

type errInfo int

const (
	ok errInfo = iota
	errDerivative
	errLineSearchTol
	errLineSearchFailed
	warnRestartLoop
	warnTooManySearch
)

// iterSpec holds the immutable per-problem configuration shared by all workspaces.
type iterSpec struct {
	n       int
	epsilon float64
	stop    Termination
	object  Objective
	grad    Gradient
	diff    *GradApprox
	search  *SearchTol
	dense   bool
	watch   Observer
	logger  Logger
}

// iterLoc is the current location of the optimization process.
type iterLoc struct {
	f float64
	x []float64 // n
	g []float64 // n
}

func (loc *iterLoc) save(x []float64, f *float64, g []float64) {
	n := len(loc.x)
	dcopy(n, loc.x, 1, x, 1)
	dcopy(n, loc.g, 1, g, 1)
	*f = loc.f
}

func (loc *iterLoc) load(x []float64, f float64, g []float64) {
	n := len(loc.x)
	dcopy(n, x, 1, loc.x, 1)
	dcopy(n, g, 1, loc.g, 1)
	loc.f = f
}

// iterCtx is the mutable state of one optimization call.
// The slice fields alias the scratch region of the compressed Hessian buffer.
type iterCtx struct {
	hessian

	iter  int // iteration counter
	numFn int // objective evaluation counter
	numGr int // gradient evaluation counter

	updates int // applied BFGS corrections
	skips   int // skipped BFGS corrections

	stp     float64 // accepted step length of the latest line search
	dNorm   float64 // ‖ d ‖₂ of the latest direction
	gNorm   float64 // ‖ g ‖∞ at the current location
	gd      float64 // directional derivative gᵀd at the latest trial point
	gdOld   float64 // directional derivative at the search origin
	fOld    float64 // function value at the search origin
	numBack int     // trial evaluations of the latest line search

	task       SearchTask
	searchTol  SearchTol
	searchCtx  SearchCtx
	fresh      bool // no correction applied yet (identity-scaled factor)
	d          []float64
	y          []float64
	xOld, gOld []float64
	bs, wrk    []float64
}

// bindScratch carves the per-run work vectors out of the buffer scratch region.
func (ctx *iterCtx) bindScratch() {
	n := ctx.hessian.n
	s := ctx.hessian.scratch()
	ctx.d = s[:n]
	ctx.y = s[n : 2*n]
	ctx.xOld = s[2*n : 3*n]
	ctx.gOld = s[3*n : 4*n]
	ctx.bs = s[4*n : 5*n]
	ctx.wrk = s[5*n : 6*n]
}

// clear resets the per-call counters and scratch while keeping the packed
// factor and its freshness flag: a reused or imported factor stays warm.
func (ctx *iterCtx) clear() {
	ctx.iter, ctx.numFn, ctx.numGr = 0, 0, 0
	ctx.updates, ctx.skips = 0, 0
	ctx.stp, ctx.dNorm, ctx.gNorm = zero, zero, zero
	ctx.gd, ctx.gdOld, ctx.fOld = zero, zero, zero
	ctx.numBack = 0
	ctx.task = SearchStart
	ctx.searchCtx = SearchCtx{}
	dzero(ctx.hessian.scratch())
}
