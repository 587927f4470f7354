// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uncmin

// iterDriver is the main driver for iterations in an optimization process,
// responsible for managing the flow of the optimization.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *iterLoc
}

// nextLocation performs function and gradient evaluations at the current
// location, charging the evaluation budget and trapping evaluator panics.
func (d *iterDriver) nextLocation(status Status) Status {
	o, ctx, loc := d.optimizer, &d.workspace.iterCtx, d.location
	if ctx.numFn >= o.stop.MaxEvaluations {
		status = MaxEvaluationsReached
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					status = EvalFault
				}
			}()
			loc.f = o.object(loc.x)
			ctx.numFn++
			if o.grad != nil {
				o.grad(loc.x, loc.g)
			} else {
				ctx.numFn += o.diff.estimate(o.object, loc.x, loc.f, loc.g)
			}
			ctx.numGr++
		}()
	}
	return status
}

// newIteration handles the transition to a new iteration, checking the
// stationarity measure before the iteration and evaluation budgets.
func (d *iterDriver) newIteration(status Status) Status {
	o, ctx, loc := d.optimizer, &d.workspace.iterCtx, d.location
	ctx.iter++
	ctx.gNorm = dnrmInf(o.n, loc.g)
	if ctx.gNorm <= o.epsilon {
		status = Converged
	} else if ctx.iter >= o.stop.MaxIterations {
		status = MaxIterationsReached
	} else if ctx.numFn >= o.stop.MaxEvaluations {
		status = MaxEvaluationsReached
	}
	return status
}

// mainLoop is the main execution loop of the iteration process, performing
// multiple operations including solving the quasi-Newton direction, performing
// line searches and applying BFGS corrections. It controls the iteration flow.
func (d *iterDriver) mainLoop() (status Status) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	ctx.clear()

	d.printInit()

	// Calculate f₀ and g₀
	if status = d.nextLocation(Running); status == Running {
		ctx.gNorm = dnrmInf(spec.n, loc.g)
		if ctx.gNorm <= spec.epsilon {
			status = Converged
		}
		if log.enable(LogEval) {
			log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
			log.out(" %4d %4d    -      -       -    %10.3e %10.3e\n", ctx.iter, ctx.numFn, ctx.gNorm, loc.f)
		}
	}

	info := ok
	for status == Running {

		if info != ok {
			info = ok
			ctx.reset()
			ctx.fresh = true
			if log.enable(LogLast) {
				log.log("Refreshing BFGS factor and restarting iteration.\n")
			}
		}

		if log.enable(LogTrace) {
			log.log("\n\nITERATION %5d\n", ctx.iter+1)
		}

		// Solve Bₖdₖ = -gₖ for the quasi-Newton direction
		ctx.solveDir(loc.g, ctx.d)

		if info = d.searchOptimalStep(&status); info != ok {
			continue
		}
		if status != Running {
			break
		}

		// Refine B with the accepted secant pair, then transition
		// to the next iterate and print its quantities.
		updateCorrection(loc, spec, ctx)
		status = d.newIteration(status)
		d.printIter()

		if spec.watch != nil {
			spec.watch(ctx.iter, loc.x, loc.f, ctx.gNorm)
		}

		if status == Converged && ctx.numBack >= searchBackSlow {
			info = warnTooManySearch
		}
	}

	d.printExit(status, info)
	return
}

// searchOptimalStep calculates the optimal step size (λₖ) along dₖ,
// using line search techniques to determine the next location.
func (d *iterDriver) searchOptimalStep(status *Status) (info errInfo) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	initLineSearch(spec, ctx)
	loc.save(ctx.xOld, &ctx.fOld, ctx.gOld) // Save original x, f, g

	done := false
	for !done {
		info, done = performLineSearch(loc, spec, ctx)
		if done && ctx.task&SearchWarn > 0 && loc.f >= ctx.fOld {
			// The search gave up without improving f; reject the trial.
			done = false
			info = errLineSearchFailed
		}
		if info == ok && ctx.numBack < searchBackExit {
			if !done {
				if *status = d.nextLocation(*status); *status != Running {
					break
				}
				ctx.numBack++
			}
			continue
		}
		if info == ok {
			info = errLineSearchFailed
		}
		if ctx.fresh {
			// The identity factor already gives steepest descent;
			// there is no better direction to restart with.
			*status = LineSearchStalled
			ctx.iter++
		} else {
			info = warnRestartLoop
		}
		break
	}

	if !done {
		// Restore the previous iterate
		loc.load(ctx.xOld, ctx.fOld, ctx.gOld)
	}

	if log := spec.logger; log.enable(LogLast) && info != ok {
		switch info {
		case errDerivative:
			log.log("Ascent direction in line search gd = %f\n", ctx.gd)
		case warnRestartLoop:
			log.log("Bad direction in the line search;\n")
		}
	}

	return
}

// printInit logs the initialization details of the BFGS optimization process,
// including machine precision, problem dimension and the initial factor state.
func (d *iterDriver) printInit() {

	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	if log.enable(LogLast) {
		log.log("RUNNING THE BFGS CODE\n")
		log.log("           * * *\n")
		log.log("Machine precision = %10.3e\n", epsmch)
		log.log("N = %d\n", spec.n)
		if !ctx.fresh {
			log.log("Warm start from a previous factor\n")
		}

		if log.enable(LogEval) {
			log.out("RUNNING THE BFGS CODE\n\n")
			log.out("Machine precision = %10.3e\n", epsmch)
			log.out("N = %d\n", spec.n)
			log.out("\n   it   nf   itls   stepl   tstep    |g|        f\n")
		}
	}
}

// printIter logs the current iteration details, including the function value,
// gradient norm, and other iteration statistics.
func (d *iterDriver) printIter() {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger

	stpNorm := ctx.stp * ctx.dNorm
	if log.enable(LogTrace) {
		log.log("LINE SEARCH %d times; norm of step = %12.5e\n", ctx.numBack, stpNorm)
		log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		var warn string
		switch ctx.task {
		case SearchWarnRoundErr:
			warn = "ROUNDING ERRORS PREVENT PROGRESS"
		case SearchWarnReachEps:
			warn = "XTOL TEST SATISFIED"
		case SearchWarnReachMax:
			warn = "STP = STPMAX"
		case SearchWarnReachMin:
			warn = "STP = STPMIN"
		}
		if warn != "" {
			log.log("WARNING: %v\n", warn)
		}
		if log.enable(LogVerbose) {
			log.log("\n X = ")
			for i := 0; i < spec.n; i++ {
				log.log("%.2e ", loc.x[i])
				if (i+1)%6 == 0 {
					log.log("\n     ")
				}
			}

			log.log("\n G = ")
			for i := 0; i < spec.n; i++ {
				log.log("%.2e ", loc.g[i])
				if (i+1)%6 == 0 {
					log.log("\n     ")
				}
			}
			log.log("\n")
		}
	} else if log.enable(LogEval) {
		if ctx.iter%int(log.Level) == 0 {
			log.log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		}
	}

	if log.enable(LogEval) {
		log.out("%4d %5d %5d %7.1f %7.1f %10.3e %10.3e\n",
			ctx.iter, ctx.numFn, ctx.numBack, ctx.stp, stpNorm, ctx.gNorm, loc.f)
	}
}

// printExit logs the final statistics and exit conditions of the optimization process.
func (d *iterDriver) printExit(status Status, info errInfo) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("Tit   = total number of iterations\n")
	log.log("Tnf   = total number of function evaluations\n")
	log.log("Tng   = total number of gradient evaluations\n")
	log.log("Updt  = number of BFGS updates applied\n")
	log.log("Skip  = number of BFGS updates skipped\n")
	log.log("|g|   = infinity norm of the final gradient\n")
	log.log("F     = final function value\n")
	log.log("\n           * * *\n")
	log.log("\n   N      Tit      Tnf     Tng   Updt   Skip     |g|         F\n")
	log.log("%5d %6d %7d %7d %6d %6d %6.2e %9.5e\n",
		spec.n, ctx.iter, ctx.numFn, ctx.numGr, ctx.updates, ctx.skips, ctx.gNorm, loc.f)

	if log.enable(LogVerbose) {
		log.log("\n X =")
		for i := 0; i < spec.n; i++ {
			log.log(" %.2e", loc.x[i])
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\n")
	}

	if log.enable(LogEval) {
		log.log(" F = %.9e\n", loc.f)
	}

	var msg string
	switch status {
	case Converged:
		msg = "CONVERGENCE: NORM_OF_GRADIENT_<=_EPS"
	case LineSearchStalled:
		msg = "ABNORMAL_TERMINATION_IN_LNSRCH"
	case EvalFault:
		msg = "STOP: EVALUATION CALLBACK PANICKED"
	case MaxIterationsReached:
		msg = "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case MaxEvaluationsReached:
		msg = "STOP: TOTAL NO. of f AND g EVALUATIONS EXCEEDS LIMIT"
	default:
		msg = "UNKNOWN STATUS"
	}
	log.log("\n%s\n", msg)

	if info != ok {
		switch info {
		case errDerivative:
			log.log("\n Derivative >= 0, backtracking line search impossible.\n")
			log.log("   Previous x, f and g restored.\n")
			log.log(" Possible causes: 1 error in function or gradient evaluation;\n")
			log.log("                  2 rounding errors dominate computation.\n")
		case warnTooManySearch:
			log.log("\n Warning:  more than 10 function and gradient evaluations in the last line search.\n")
			log.log("   Termination may possibly be caused by a bad search direction.\n")
		case errLineSearchFailed:
			log.log("\n Line search cannot locate an adequate point after 20 function and gradient evaluations.\n")
			log.log("   Previous x, f and g restored.\n")
			log.log(" Possible causes: 1 error in function or gradient evaluation;\n")
			log.log("                  2 rounding error dominate computation.\n")
		case errLineSearchTol:
			switch ctx.task {
			case SearchErrOverLower:
				msg = "STP < STPMIN"
			case SearchErrOverUpper:
				msg = "STP > STPMAX"
			case SearchErrNegInitG:
				msg = "INITIAL G >= ZERO"
			case SearchErrNegAlpha:
				msg = "FTOL < ZERO"
			case SearchErrNegBeta:
				msg = "GTOL < ZERO"
			case SearchErrNegEps:
				msg = "XTOL < ZERO"
			case SearchErrLower:
				msg = "STPMIN < ZERO"
			case SearchErrUpper:
				msg = "STPMAX < STPMIN"
			}
			log.log("\n Line search setting is invalid: %v \n", msg)
		}
	}
}
