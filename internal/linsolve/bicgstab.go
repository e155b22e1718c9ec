package linsolve

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/bifurc/internal/bif"
)

const breakdownTol = 1e-30

// BiCGStab solves J·x = rhs with the BiConjugate Gradient Stabilized
// method. It only needs the Jacobian's linear application, making it the
// solver of choice for matrix-free operators.
type BiCGStab struct {
	Tol     float64 // relative residual tolerance, default 1e-10
	MaxIter int     // default 2·dim
}

func (s BiCGStab) Solve(j bif.Jacobian, rhs []float64) (bif.State, bool, int) {
	n := j.Dim()
	if len(rhs) != n {
		return nil, false, 0
	}
	tol := s.Tol
	if tol == 0 {
		tol = 1e-10
	}
	maxIter := s.MaxIter
	if maxIter == 0 {
		maxIter = 2 * n
	}

	bnorm := floats.Norm(rhs, 2)
	if bnorm == 0 {
		return make(bif.State, n), true, 0
	}

	x := make(bif.State, n)
	r := append([]float64(nil), rhs...) // r = b - J·0
	rt := append([]float64(nil), r...)
	p := make([]float64, n)
	v := make([]float64, n)
	t := make([]float64, n)
	sv := make([]float64, n)

	var rho, rhoPrev, alpha, omega float64
	for iter := 1; iter <= maxIter; iter++ {
		rho = floats.Dot(rt, r)
		if math.Abs(rho) < breakdownTol {
			return x, false, iter
		}
		if iter == 1 {
			copy(p, r)
		} else {
			beta := (rho / rhoPrev) * (alpha / omega)
			floats.AddScaled(p, -omega, v) // p -= ω·v
			floats.Scale(beta, p)
			floats.Add(p, r)
		}
		j.Apply(v, p)
		den := floats.Dot(rt, v)
		if math.Abs(den) < breakdownTol {
			return x, false, iter
		}
		alpha = rho / den

		copy(sv, r)
		floats.AddScaled(sv, -alpha, v) // s = r - α·v
		if floats.Norm(sv, 2) <= tol*bnorm {
			floats.AddScaled(x, alpha, p)
			return x, x.IsValid(), iter
		}

		j.Apply(t, sv)
		tt := floats.Dot(t, t)
		if tt < breakdownTol {
			return x, false, iter
		}
		omega = floats.Dot(t, sv) / tt

		floats.AddScaled(x, alpha, p)
		floats.AddScaled(x, omega, sv)

		copy(r, sv)
		floats.AddScaled(r, -omega, t)
		if floats.Norm(r, 2) <= tol*bnorm {
			return x, x.IsValid(), iter
		}
		if math.Abs(omega) < breakdownTol {
			return x, false, iter
		}
		rhoPrev = rho
	}
	return x, false, maxIter
}
