// Package linsolve provides the linear solvers driving the continuation
// engine: plain solves of J·x = rhs and bordered solves of the augmented
// system [[J, a], [bᵀ, c]].
//
// Two base solver kinds are available:
//
//   - [DenseLU]: direct LU factorization of a materialized Jacobian
//   - [BiCGStab]: matrix-free Krylov iteration for large operators
//
// Two bordered variants are available:
//
//   - [Bordering]: block elimination reusing the base solver twice
//   - [MatrixBordered]: direct solve of the assembled (N+1)×(N+1) system
//
// Every solve reports a convergence flag; callers must not use results
// from a non-converged solve.
package linsolve

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

// Solver solves J·x = rhs for a single right-hand side.
type Solver interface {
	Solve(j bif.Jacobian, rhs []float64) (x bif.State, converged bool, iters int)
}

// DenseLU factorizes the (materialized) Jacobian with gonum's LU.
type DenseLU struct{}

func (DenseLU) Solve(j bif.Jacobian, rhs []float64) (bif.State, bool, int) {
	n := j.Dim()
	if len(rhs) != n {
		return nil, false, 0
	}
	var lu mat.LU
	lu.Factorize(bif.Materialize(j))
	x := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(n, append([]float64(nil), rhs...))); err != nil {
		return nil, false, 0
	}
	out := bif.State(x.RawVector().Data)
	if !out.IsValid() {
		return nil, false, 0
	}
	return out, true, 1
}

// SolveDense solves the assembled m×m system a·x = b, used by the
// matrix-based bordered variant.
func solveDense(a *mat.Dense, b []float64) (bif.State, bool) {
	m := len(b)
	var lu mat.LU
	lu.Factorize(a)
	x := mat.NewVecDense(m, nil)
	if err := lu.SolveVecTo(x, false, mat.NewVecDense(m, append([]float64(nil), b...))); err != nil {
		return nil, false
	}
	out := bif.State(x.RawVector().Data)
	return out, out.IsValid()
}
