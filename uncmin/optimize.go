// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line at the last iteration
	LogLast LogLevel = 0
	// LogEval print also f and |g| every `level` iterations for any (0 < level < 99)
	LogEval LogLevel = 1
	// LogTrace print details of every iteration except n-vectors
	LogTrace LogLevel = 99
	// LogVerbose print details of every iteration including x and g (level > 99)
	LogVerbose LogLevel = 100
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for output data.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// Objective is a function type for evaluating the objective function.
type Objective func(x []float64) (f float64)

// Gradient is a function type for evaluating the objective gradient into g.
type Gradient func(x []float64, g []float64)

// Observer is invoked after every accepted iterate.
// The x slice is owned by the optimizer and must not be retained.
type Observer func(iter int, x []float64, f, gNorm float64)

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration stop when the number of function evaluation exceeds limit.
	MaxEvaluations int
	// The iteration stop when the gradient satisfied:
	//   ‖ gₖ ‖∞ ≤ 𝚎𝚙𝚜
	GradTolerance float64
}

// Problem specifies the problem for BFGS optimizer.
type Problem struct {
	N      int         // The problem dimension
	Object Objective   // Objective function
	Grad   Gradient    // Optional analytic gradient
	Diff   *GradApprox // Optional finite-difference config when Grad is nil
	Stop   Termination // Stop condition
	Search *SearchTol  // Optional line-search config
	Dense  bool        // Reconstruct the dense Hessian approximation in the result
	Watch  Observer    // Optional per-iteration callback
}

// New creates a new BFGS optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stderr
	}

	n := p.N
	object, grad, stop := p.Object, p.Grad, p.Stop

	stop.MaxEvaluations = max(stop.MaxEvaluations, 0)
	if stop.MaxEvaluations == 0 {
		stop.MaxEvaluations = math.MaxInt
	}

	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case object == nil:
		err = errors.New("objective function is required")
	case stop.MaxIterations <= 0:
		err = errors.New("max iteration must greater than 0")
	case math.IsNaN(stop.GradTolerance) || stop.GradTolerance < zero:
		err = errors.New("gradient tolerance must not less than 0")
	}

	if err != nil {
		return
	}

	diff := p.Diff
	if grad == nil && diff == nil {
		diff = new(GradApprox)
	}

	optimizer = &Optimizer{
		iterSpec{
			n:       n,
			epsilon: stop.GradTolerance,
			stop:    stop,
			object:  object,
			grad:    grad,
			diff:    diff,
			search:  p.Search,
			dense:   p.Dense,
			watch:   p.Watch,
			logger:  *logger,
		},
	}
	return
}

// Optimizer implemented using the BFGS algorithm with a compressed
// Hessian approximation.
type Optimizer struct {
	iterSpec
}

// Workspace contains the state and context of the optimization process.
// Given problem dimension n, total work space is float64[n×(n+13)/2]:
// the packed 𝐋𝐃𝐋ᵀ factor of the Hessian approximation plus 6×n scratch.
type Workspace struct {
	n int
	iterCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK      bool          // Whether the optimization was converged.
	F       float64       // Final function value.
	X, G    []float64     // Final solution and gradient.
	Hessian []float64     // Compressed Hessian buffer for later warm starts.
	H       *mat.SymDense // Dense Hessian approximation (Dense problems only).
	Summary               // Optimization summary.
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status  Status // Final status after optimization.
	NumIter int    // Number of iterations performed.
	NumFn   int    // Number of function evaluations performed.
	NumGr   int    // Number of gradient evaluations performed.
}

// Init allocates a cold workspace whose Hessian approximation starts
// from the identity.
// To avoid race conditions, separate workspaces need to be created for
// each goroutine. But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n = o.n
	w.hessian = allocHessian(o.n)
	w.bindScratch()
	w.fresh = true
	return w
}

// Warm allocates a workspace whose Hessian approximation resumes from a
// compressed buffer exported by a previous run on a related problem.
// The buffer length must equal HessianSize(n) or ErrSizeMismatch is
// returned before any evaluation takes place.
func (o *Optimizer) Warm(buf []float64) (*Workspace, error) {
	h, err := importHessian(o.n, buf)
	if err != nil {
		return nil, err
	}
	w := new(Workspace)
	w.n = o.n
	w.hessian = h
	w.bindScratch()
	w.fresh = false
	return w, nil
}

// Fit runs the optimization process using the initial guess x and workspace w.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("initial x dimension not match spec")
	}

	if w.n != o.n {
		panic("workspace dimension not match spec")
	}

	loc := iterLoc{
		x: slices.Repeat(x, 1),
		g: make([]float64, len(x)),
	}

	driver := iterDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	status := driver.mainLoop()
	res := &Result{
		OK: status == Converged,
		X:  loc.x, F: loc.f, G: loc.g,
		Hessian: w.export(),
		Summary: Summary{
			Status:  status,
			NumIter: w.iter,
			NumFn:   w.numFn,
			NumGr:   w.numGr,
		},
	}
	if o.dense {
		res.H = w.Sym()
	}
	return res
}
