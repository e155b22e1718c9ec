// Package newton implements the damped Newton corrector used both to
// refine single points and, through a bordered linear solver, to correct
// pseudo-arclength continuation steps. A deflated variant repels the
// iteration from already-known roots.
package newton

import (
	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/linsolve"
)

// Status reports how a Newton solve terminated.
type Status int

const (
	StatusConverged Status = iota
	StatusMaxIter
	StatusLinearFailed
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIter:
		return "max iterations exceeded"
	case StatusLinearFailed:
		return "linear solve failed"
	}
	return "unknown"
}

const (
	DefaultTol       = 1e-10
	DefaultMaxIter   = 25
	DefaultMaxGrowth = 1e2
)

// Options configures a Newton solve.
type Options struct {
	Tol       float64
	MaxIter   int
	Solver    linsolve.Solver
	Damping   float64                 // step fraction in (0,1], 0 means undamped
	MaxGrowth float64                 // abort when the residual grows past MaxGrowth× its best value
	Norm      func(bif.State) float64 // defaults to the 2-norm
}

func (o Options) withDefaults() Options {
	if o.Tol == 0 {
		o.Tol = DefaultTol
	}
	if o.MaxIter == 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.Solver == nil {
		o.Solver = linsolve.DenseLU{}
	}
	if o.Damping == 0 {
		o.Damping = 1
	}
	if o.MaxGrowth == 0 {
		o.MaxGrowth = DefaultMaxGrowth
	}
	if o.Norm == nil {
		o.Norm = bif.State.Norm
	}
	return o
}

// Result carries the outcome of a Newton solve. X is only a root when
// Converged is true.
type Result struct {
	X          bif.State
	Residuals  []float64
	Iterations int
	Converged  bool
	Status     Status
}

// Solve runs Newton iteration on prob from x0 at fixed parameter p.
// If x0 already satisfies the tolerance it returns immediately with
// zero iterations.
func Solve(prob bif.Problem, x0 bif.State, p float64, opts Options) Result {
	opts = opts.withDefaults()

	x := x0.Clone()
	r := prob.Residual(x, p)
	rn := opts.Norm(r)
	res := Result{X: x, Residuals: []float64{rn}}

	if !r.IsValid() {
		res.Status = StatusMaxIter
		return res
	}
	if rn <= opts.Tol {
		res.Converged = true
		return res
	}

	best := rn
	for iter := 1; iter <= opts.MaxIter; iter++ {
		delta, ok, _ := opts.Solver.Solve(prob.Jacobian(x, p), r)
		if !ok {
			res.Status = StatusLinearFailed
			return res
		}

		for i := range x {
			x[i] -= opts.Damping * delta[i]
		}
		r = prob.Residual(x, p)
		rn = opts.Norm(r)
		res.Residuals = append(res.Residuals, rn)
		res.Iterations = iter

		if !r.IsValid() {
			res.Status = StatusMaxIter
			return res
		}
		if rn <= opts.Tol {
			res.Converged = true
			return res
		}
		if rn < best {
			best = rn
		} else if rn > opts.MaxGrowth*best {
			// Diverging: abort early instead of spinning.
			res.Status = StatusMaxIter
			return res
		}
	}
	res.Status = StatusMaxIter
	return res
}
