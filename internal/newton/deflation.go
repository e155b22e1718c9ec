package newton

import (
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/linsolve"
)

// DeflationOperator is a product of repelling potentials around known
// roots. Multiplying the residual by it makes previously found solutions
// repel the Newton iteration, so new roots can be reached from the same
// initial guess.
type DeflationOperator struct {
	Power float64
	Shift float64
	Roots []bif.State
}

// NewDeflation builds an operator with factors 1/‖x−r‖^power + shift.
func NewDeflation(power, shift float64, roots ...bif.State) *DeflationOperator {
	d := &DeflationOperator{Power: power, Shift: shift}
	for _, r := range roots {
		d.Roots = append(d.Roots, r.Clone())
	}
	return d
}

// Push registers a new known root.
func (d *DeflationOperator) Push(root bif.State) {
	d.Roots = append(d.Roots, root.Clone())
}

// Eval computes the scalar deflation factor M(x).
func (d *DeflationOperator) Eval(x bif.State) float64 {
	m := 1.0
	for _, r := range d.Roots {
		dist := x.Sub(r).Norm()
		m *= math.Pow(dist, -d.Power) + d.Shift
	}
	return m
}

// Gradient computes ∇M(x) analytically.
func (d *DeflationOperator) Gradient(x bif.State) bif.State {
	m := d.Eval(x)
	grad := make(bif.State, len(x))
	for _, r := range d.Roots {
		diff := x.Sub(r)
		dist := diff.Norm()
		mi := math.Pow(dist, -d.Power) + d.Shift
		// d(dist^-p)/dx = -p·dist^(-p-2)·(x-r)
		coeff := -d.Power * math.Pow(dist, -d.Power-2) * m / mi
		for i := range grad {
			grad[i] += coeff * diff[i]
		}
	}
	return grad
}

type deflatedProblem struct {
	base bif.Problem
	defl *DeflationOperator
}

func (dp *deflatedProblem) Dim() int { return dp.base.Dim() }

func (dp *deflatedProblem) Residual(x bif.State, p float64) bif.State {
	return dp.base.Residual(x, p).Scale(dp.defl.Eval(x))
}

// Jacobian of G(x) = M(x)·F(x): dG·δ = M·(J·δ) + (∇M·δ)·F(x).
func (dp *deflatedProblem) Jacobian(x bif.State, p float64) bif.Jacobian {
	f := dp.base.Residual(x, p)
	j := dp.base.Jacobian(x, p)
	m := dp.defl.Eval(x)
	grad := dp.defl.Gradient(x)
	return &bif.MatFree{
		N: dp.base.Dim(),
		MulVec: func(dst, src []float64) {
			j.Apply(dst, src)
			g := grad.Dot(bif.State(src))
			for i := range dst {
				dst[i] = m*dst[i] + g*f[i]
			}
		},
	}
}

// SolveDeflated runs Newton on the deflated residual M(x)·F(x), so roots
// already held by defl repel the iteration, then polishes the result with
// plain Newton on the undeflated problem.
func SolveDeflated(prob bif.Problem, defl *DeflationOperator, x0 bif.State, p float64, opts Options) Result {
	deflOpts := opts
	if deflOpts.Solver == nil {
		// The deflated Jacobian is a rank-one perturbation of M·J,
		// exposed matrix-free, so default to a Krylov solver.
		deflOpts.Solver = linsolve.BiCGStab{}
	}
	res := Solve(&deflatedProblem{base: prob, defl: defl}, x0, p, deflOpts)
	if !res.Converged {
		return res
	}
	polish := Solve(prob, res.X, p, opts)
	polish.Iterations += res.Iterations
	polish.Residuals = append(res.Residuals, polish.Residuals...)
	return polish
}
