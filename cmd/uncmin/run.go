package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/curioloop/uncmin/uncmin"
)

var (
	problem string
	dim     int
	eps     float64
	iters   int
	evals   int
	rounds  int
	trace   bool
	dense   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Minimize a built-in benchmark problem",
	Long: `Runs the BFGS minimizer on a built-in benchmark problem and reports
the result. With --rounds > 1 the exported compressed Hessian of each
round warm-starts the next one.`,
	RunE: runMinimize,
}

func init() {
	runCmd.Flags().StringVar(&problem, "problem", "rosenbrock", "Benchmark problem: rosenbrock, quadratic")
	runCmd.Flags().IntVar(&dim, "n", 2, "Problem dimension")
	runCmd.Flags().Float64Var(&eps, "eps", 1e-6, "Gradient tolerance")
	runCmd.Flags().IntVar(&iters, "max-iters", 200, "Max iterations")
	runCmd.Flags().IntVar(&evals, "max-evals", 0, "Max function evaluations (0 = unlimited)")
	runCmd.Flags().IntVar(&rounds, "rounds", 1, "Number of runs chained through warm starts")
	runCmd.Flags().BoolVar(&trace, "trace", false, "Print per-iteration details")
	runCmd.Flags().BoolVar(&dense, "dense", false, "Reconstruct the dense Hessian approximation")

	rootCmd.AddCommand(runCmd)
}

// extRosenbrock is the extended Rosenbrock function over pairs of variables.
func extRosenbrock(x []float64, g []float64) (f float64) {
	for i := 0; i+1 < len(x); i += 2 {
		t1 := x[i+1] - x[i]*x[i]
		t2 := 1 - x[i]
		f += 100*t1*t1 + t2*t2
		if g != nil {
			g[i] = -400*x[i]*t1 - 2*t2
			g[i+1] = 200 * t1
		}
	}
	return
}

// convexQuadratic is f(x) = ½Σᵢ(i+1)xᵢ² - Σᵢxᵢ with a known minimizer.
func convexQuadratic(x []float64, g []float64) (f float64) {
	for i, v := range x {
		a := float64(i + 1)
		f += 0.5*a*v*v - v
		if g != nil {
			g[i] = a*v - 1
		}
	}
	return
}

func runMinimize(cmd *cobra.Command, args []string) error {

	var fun func(x, g []float64) float64
	x0 := make([]float64, dim)

	switch problem {
	case "rosenbrock":
		if dim < 2 || dim%2 != 0 {
			return fmt.Errorf("rosenbrock requires an even dimension >= 2, got %d", dim)
		}
		fun = extRosenbrock
		for i := 0; i+1 < dim; i += 2 {
			x0[i], x0[i+1] = -1.2, 1
		}
	case "quadratic":
		if dim < 1 {
			return fmt.Errorf("quadratic requires dimension >= 1, got %d", dim)
		}
		fun = convexQuadratic
	default:
		return fmt.Errorf("unknown problem: %s", problem)
	}

	var log *uncmin.Logger
	if trace {
		log = &uncmin.Logger{
			Level: uncmin.LogTrace,
			Msg:   os.Stderr,
			Out:   os.Stderr,
		}
	}

	p := uncmin.Problem{
		N:      dim,
		Object: func(x []float64) float64 { return fun(x, nil) },
		Grad:   func(x, g []float64) { fun(x, g) },
		Stop: uncmin.Termination{
			MaxIterations:  iters,
			MaxEvaluations: evals,
			GradTolerance:  eps,
		},
		Dense: dense,
	}

	s, err := p.New(log)
	if err != nil {
		return fmt.Errorf("invalid problem: %w", err)
	}

	slog.Info("Starting minimization", "problem", problem, "n", dim, "eps", eps, "rounds", rounds)

	var hessian []float64
	for round := 1; round <= rounds; round++ {

		var w *uncmin.Workspace
		if hessian == nil {
			w = s.Init()
		} else if w, err = s.Warm(hessian); err != nil {
			return fmt.Errorf("warm start failed: %w", err)
		}

		start := time.Now()
		r := s.Fit(x0, w)
		elapsed := time.Since(start)
		hessian = r.Hessian

		slog.Info("Round complete",
			"round", round,
			"status", r.Status.String(),
			"f", r.F,
			"iterations", r.NumIter,
			"evaluations", r.NumFn,
			"gradients", r.NumGr,
			"elapsed", elapsed,
		)

		if !r.OK {
			return fmt.Errorf("round %d did not converge: %s", round, r.Status)
		}

		if round == rounds {
			fmt.Printf("f = %.9e after %d iterations (%d evaluations)\n", r.F, r.NumIter, r.NumFn)
			for i, v := range r.X {
				fmt.Printf("x[%d] = % .6e\n", i, v)
			}
			if dense && r.H != nil {
				fmt.Println("B =")
				for i := 0; i < dim; i++ {
					for j := 0; j < dim; j++ {
						fmt.Printf(" % .4e", r.H.At(i, j))
					}
					fmt.Println()
				}
			}
		}
	}

	return nil
}
