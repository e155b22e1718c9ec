package continuation

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/events"
	"github.com/san-kum/bifurc/internal/newton"
)

// Iterator traces one solution branch with pseudo-arclength
// predictor-corrector stepping. It owns its per-run state exclusively.
type Iterator struct {
	prob bif.Problem
	opts Options
	m    metric
}

func New(prob bif.Problem, opts Options) (*Iterator, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Iterator{
		prob: prob,
		opts: opts,
		m:    metric{theta: opts.Theta, n: prob.Dim()},
	}, nil
}

// Run traces the branch from (x0, p0). The initial guess is first
// refined by plain Newton at fixed p0. Any terminal status still yields
// the partial branch accumulated so far; only a non-convergent initial
// point is an error.
func (it *Iterator) Run(ctx context.Context, x0 bif.State, p0 float64) (*Branch, error) {
	init := newton.Solve(it.prob, x0, p0, it.opts.Newton)
	if !init.Converged {
		return nil, fmt.Errorf("initial point did not converge at p=%g: %s", p0, init.Status)
	}
	cur := bif.Point{X: init.X.Clone(), P: p0}

	tan, ok := naturalTangent(it.prob, cur.X, cur.P, it.opts.Newton.Solver, it.m)
	if !ok {
		return nil, fmt.Errorf("%w: initial tangent at p=%g", bif.ErrLinearSolveFailed, p0)
	}
	ds := it.opts.Ds
	if ds < 0 {
		// Direction lives in the tangent; ds stays a positive magnitude.
		tan = Tangent{X: tan.X.Scale(-1), P: -tan.P}
		ds = -ds
	}

	branch := &Branch{Status: StatusMaxSteps}

	evCtx, eig := it.evalAt(cur, tan, 0)
	var prevVals []float64
	evInit := false
	if it.eventsUsable(eig) {
		it.opts.Events.Initialize(evCtx)
		prevVals = it.opts.Events.Eval(evCtx)
		evInit = true
	}
	it.record(branch, cur, tan, ds, 0, init.Iterations, eig)

	rejected := 0
	for step := 1; step <= it.opts.MaxSteps; {
		select {
		case <-ctx.Done():
			branch.Status = StatusCanceled
			return branch, ctx.Err()
		default:
		}

		pt, nres := correct(it.prob, cur, tan, ds, it.m, it.opts.Newton, it.opts.Bordered)
		if !nres.Converged {
			ds /= 2
			rejected++
			if ds < it.opts.DsMin {
				if nres.Status == newton.StatusLinearFailed {
					branch.Status = StatusLinearFailure
				} else {
					branch.Status = StatusStuck
				}
				return branch, nil
			}
			continue
		}

		newTan := secantTangent(cur, pt, it.m)
		if it.m.dot(newTan.X, newTan.P, tan.X, tan.P) < 0 {
			newTan = Tangent{X: newTan.X.Scale(-1), P: -newTan.P}
		}

		evCtx, eig = it.evalAt(pt, newTan, step)
		if it.eventsUsable(eig) {
			if !evInit {
				it.opts.Events.Initialize(evCtx)
				prevVals = it.opts.Events.Eval(evCtx)
				evInit = true
			} else {
				curVals := it.opts.Events.Eval(evCtx)
				if sp, found := it.checkEvents(prevVals, curVals, evCtx, cur, tan, ds, len(branch.Points)); found {
					branch.Special = append(branch.Special, sp)
				}
				prevVals = curVals
			}
		}

		snap := it.record(branch, pt, newTan, ds, step, nres.Iterations, eig)

		if it.opts.Record != nil {
			safeRecord(it.opts.Record, pt.X, pt.P)
		}
		if it.opts.Finalizer != nil && !it.opts.Finalizer(snap, branch) {
			branch.Status = StatusHalted
			return branch, nil
		}
		if pt.P < it.opts.PMin || pt.P > it.opts.PMax {
			branch.Status = StatusParamBound
			return branch, nil
		}

		// Grow the step after fast convergence, shrink history resets.
		maxIter := it.opts.Newton.MaxIter
		if maxIter == 0 {
			maxIter = newton.DefaultMaxIter
		}
		if rejected == 0 && nres.Iterations*4 <= maxIter {
			ds = math.Min(ds*DefaultGrowth, it.opts.DsMax)
		}
		rejected = 0

		cur, tan = pt, newTan
		step++
	}
	return branch, nil
}

// record appends an accepted point to the branch.
func (it *Iterator) record(branch *Branch, pt bif.Point, tan Tangent, ds float64, step, iters int, eig *eigen.Result) Snapshot {
	snap := Snapshot{
		X:           pt.X.Clone(),
		P:           pt.P,
		Ds:          ds,
		Tangent:     tan.Clone(),
		Step:        step,
		NewtonIters: iters,
	}
	if eig != nil {
		snap.Eigenvalues = append([]complex128(nil), eig.Values...)
		snap.NUnstable = eigen.NUnstable(eig.Values)
	}
	branch.Points = append(branch.Points, snap)
	return snap
}

// eventsUsable reports whether the event set can be evaluated at this
// step. When the set needs eigen-elements and the eigensolve failed,
// the step is skipped rather than compared against zeroed counts, which
// would fire spurious crossings; the previous values carry across the
// gap instead.
func (it *Iterator) eventsUsable(eig *eigen.Result) bool {
	if it.opts.Events == nil {
		return false
	}
	return !it.opts.Events.RequiresEigen() || eig != nil
}

// evalAt builds the event-evaluation context at a point, computing
// eigen-elements when the run or the event set needs them.
func (it *Iterator) evalAt(pt bif.Point, tan Tangent, step int) (*events.EvalContext, *eigen.Result) {
	var eig *eigen.Result
	needEigen := it.opts.ComputeEigen
	if it.opts.Events != nil && it.opts.Events.RequiresEigen() {
		needEigen = true
	}
	if needEigen {
		r := it.opts.EigenSolver.Eigen(it.prob.Jacobian(pt.X, pt.P), it.opts.NEig)
		if r.Converged {
			eig = &r
		}
	}
	ctx := &events.EvalContext{
		Problem:  it.prob,
		X:        pt.X,
		P:        pt.P,
		TangentX: tan.X,
		TangentP: tan.P,
		Step:     step,
	}
	if eig != nil {
		ctx.Eigen = eig
		ctx.NUnstable = eigen.NUnstable(eig.Values)
	}
	return ctx, eig
}

func safeRecord(rec func(bif.State, float64), x bif.State, p float64) {
	defer func() {
		// Recording is best effort; a panicking callback must not
		// abort continuation.
		_ = recover()
	}()
	rec(x, p)
}
