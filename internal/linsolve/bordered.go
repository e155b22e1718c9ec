package linsolve

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
)

// BorderedSolver solves the augmented system
//
//	[ J  a ] [v]   [rhsU]
//	[ bᵀ c ] [σ] = [rhsP]
//
// where J is N×N and a, b are N-vectors.
type BorderedSolver interface {
	Solve(j bif.Jacobian, a, b bif.State, c float64, rhsU bif.State, rhsP float64) (v bif.State, sigma float64, converged bool, iters int)
}

// Bordering eliminates the border with two base solves:
// J·v1 = rhsU, J·v2 = a, then σ = (rhsP − b·v1)/(c − b·v2) and
// v = v1 − σ·v2. Cheap but can amplify conditioning issues; enable
// CheckResidual to recompute the block residuals after elimination.
type Bordering struct {
	Base          Solver
	CheckResidual bool
	Tol           float64 // residual check tolerance, default 1e-8
}

func (s Bordering) Solve(j bif.Jacobian, a, b bif.State, c float64, rhsU bif.State, rhsP float64) (bif.State, float64, bool, int) {
	v1, ok1, it1 := s.Base.Solve(j, rhsU)
	v2, ok2, it2 := s.Base.Solve(j, a)
	iters := it1 + it2
	if !ok1 || !ok2 {
		return nil, 0, false, iters
	}
	den := c - b.Dot(v2)
	if den == 0 || math.IsNaN(den) {
		return nil, 0, false, iters
	}
	sigma := (rhsP - b.Dot(v1)) / den
	v := v1.AddScaled(-sigma, v2)

	if s.CheckResidual {
		tol := s.Tol
		if tol == 0 {
			tol = 1e-8
		}
		scale := math.Max(1, bif.State(rhsU).Norm()+math.Abs(rhsP))
		res := make([]float64, j.Dim())
		j.Apply(res, v)
		floats.AddScaled(res, sigma, a)
		floats.AddScaled(res, -1, rhsU)
		resP := b.Dot(v) + c*sigma - rhsP
		if bif.State(res).Norm()+math.Abs(resP) > tol*scale {
			return v, sigma, false, iters
		}
	}
	return v, sigma, v.IsValid() && !math.IsNaN(sigma), iters
}

// MatrixBordered assembles the full (N+1)×(N+1) matrix and solves it
// directly. Only applicable when J is materializable; preferred for
// small or dense systems where robustness trumps speed.
type MatrixBordered struct{}

func (MatrixBordered) Solve(j bif.Jacobian, a, b bif.State, c float64, rhsU bif.State, rhsP float64) (bif.State, float64, bool, int) {
	n := j.Dim()
	jm := bif.Materialize(j)
	aug := mat.NewDense(n+1, n+1, nil)
	aug.Slice(0, n, 0, n).(*mat.Dense).Copy(jm)
	for i := 0; i < n; i++ {
		aug.Set(i, n, a[i])
		aug.Set(n, i, b[i])
	}
	aug.Set(n, n, c)

	rhs := make([]float64, n+1)
	copy(rhs, rhsU)
	rhs[n] = rhsP

	sol, ok := solveDense(aug, rhs)
	if !ok {
		return nil, 0, false, 1
	}
	return bif.State(sol[:n]).Clone(), sol[n], true, 1
}

// SolveAdjointBordered solves the adjoint augmented system
//
//	[ Jᵀ b ] [w]   [rhsU]
//	[ aᵀ c ] [τ] = [rhsP]
//
// by calling bls on the transpose view of j with the borders swapped.
func SolveAdjointBordered(bls BorderedSolver, j bif.Jacobian, a, b bif.State, c float64, rhsU bif.State, rhsP float64) (bif.State, float64, bool, int) {
	return bls.Solve(bif.Adjoint(j), b, a, c, rhsU, rhsP)
}
