package normalform

import (
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// BranchPoint holds the algebraic branching equation at a simple branch
// point: with δx = ξ·Phi + η·V0 and δp = η, branch tangents satisfy
// c11·ξ² + 2·c12·ξη + c22·η² = 0.
type BranchPoint struct {
	Point bif.Point
	Phi   bif.State // right null vector of J
	Psi   bif.State // left null vector of J
	V0    bif.State // bordered solution of J·v0 = −F_p
	C11   float64   // ⟨ψ, B(φ, φ)⟩
	C12   float64   // ⟨ψ, B(φ, v0) + (dJ/dp)·φ⟩
	C22   float64   // ⟨ψ, B(v0, v0) + 2(dJ/dp)·v0 + F_pp⟩
}

// Pitchfork reports a vanishing leading coefficient, where the
// bifurcated branch leaves vertically in the parameter.
func (b BranchPoint) Pitchfork(tol float64) bool { return math.Abs(b.C11) <= tol }

// nullVector extracts the normalized real eigenvector of the eigenvalue
// nearest zero.
func nullVector(j bif.Jacobian, es eigen.Solver) (bif.State, bool) {
	res := es.Eigen(j, 0)
	if !res.Converged || res.Vectors == nil {
		return nil, false
	}
	idx, best := -1, math.Inf(1)
	for i, v := range res.Values {
		if m := math.Hypot(real(v), imag(v)); m < best {
			best, idx = m, i
		}
	}
	if idx < 0 {
		return nil, false
	}
	n := j.Dim()
	out := make(bif.State, n)
	for i := 0; i < n; i++ {
		out[i] = real(res.Vectors.At(i, idx))
	}
	if nrm := out.Norm(); nrm > 0 {
		return out.Scale(1 / nrm), true
	}
	return nil, false
}

// ComputeBranchPoint evaluates the branching equation coefficients at a
// refined branch point (simple one-dimensional kernel).
func ComputeBranchPoint(prob bif.Problem, x bif.State, p float64, es eigen.Solver) (BranchPoint, error) {
	j := prob.Jacobian(x, p)
	phi, okR := nullVector(j, es)
	psi, okL := nullVector(bif.Adjoint(j), es)
	if !okR || !okL {
		return BranchPoint{}, bif.ErrLinearSolveFailed
	}

	fp := numdiff.ParamDerivative(prob, x, p, 0)
	// J is singular along phi; border it with the null vectors so the
	// augmented solve is regular and v0 lands in the range complement.
	v0, _, ok, _ := linsolve.MatrixBordered{}.Solve(j, psi, phi, 0, fp.Scale(-1), 0)
	if !ok {
		return BranchPoint{}, bif.ErrLinearSolveFailed
	}

	bpp := numdiff.HessianBilinear(prob, x, p, phi, phi, 0)
	bpv := numdiff.HessianBilinear(prob, x, p, phi, v0, 0)
	bvv := numdiff.HessianBilinear(prob, x, p, v0, v0, 0)
	jpPhi := numdiff.ParamJacApply(prob, x, p, phi, 0)
	jpV0 := numdiff.ParamJacApply(prob, x, p, v0, 0)

	const h = 1e-4
	fpp := prob.Residual(x, p+h).Add(prob.Residual(x, p-h)).AddScaled(-2, prob.Residual(x, p)).Scale(1 / (h * h))

	return BranchPoint{
		Point: bif.Point{X: x.Clone(), P: p},
		Phi:   phi,
		Psi:   psi,
		V0:    v0,
		C11:   psi.Dot(bpp),
		C12:   psi.Dot(bpv.Add(jpPhi)),
		C22:   psi.Dot(bvv.AddScaled(2, jpV0).Add(fpp)),
	}, nil
}

// Directions returns the two branch tangents solving the branching
// equation, normalized in (x, p). For a pitchfork (c11 ≈ 0) the second
// direction is the vertical pure-kernel tangent.
func (b BranchPoint) Directions() (continuation.Tangent, continuation.Tangent, bool) {
	scale := math.Max(1, math.Abs(b.C12)+math.Abs(b.C22))
	if math.Abs(b.C11) <= 1e-10*scale {
		if b.C12 == 0 {
			return continuation.Tangent{}, continuation.Tangent{}, false
		}
		// Roots ξ/η = −c22/(2·c12) and ξ/η → ∞.
		d1 := normalizeDirection(b.Phi.Scale(-b.C22/(2*b.C12)).Add(b.V0), 1)
		d2 := normalizeDirection(b.Phi.Clone(), 0)
		return d1, d2, true
	}
	disc := b.C12*b.C12 - b.C11*b.C22
	if disc < 0 {
		return continuation.Tangent{}, continuation.Tangent{}, false
	}
	sq := math.Sqrt(disc)
	r1 := (-b.C12 + sq) / b.C11
	r2 := (-b.C12 - sq) / b.C11
	d1 := normalizeDirection(b.Phi.Scale(r1).Add(b.V0), 1)
	d2 := normalizeDirection(b.Phi.Scale(r2).Add(b.V0), 1)
	return d1, d2, true
}

func normalizeDirection(dx bif.State, dp float64) continuation.Tangent {
	nrm := math.Sqrt(dx.Dot(dx) + dp*dp)
	if nrm == 0 {
		return continuation.Tangent{X: dx, P: dp}
	}
	return continuation.Tangent{X: dx.Scale(1 / nrm), P: dp / nrm}
}

// SwitchBranch corrects a point on the branch crossing through sp. The
// new-branch tangent is the branching-equation direction least aligned
// with the incoming tangent; the predictor at arclength ds along it is
// corrected with deflated Newton, deflating the known solution at the
// shifted parameter so the corrector cannot fall back onto the old
// branch. It returns the corrected point and the direction used.
func SwitchBranch(prob bif.Problem, sp continuation.SpecialPoint, ds float64, es eigen.Solver, opts newton.Options) (bif.Point, continuation.Tangent, error) {
	if sp.Type != bif.BranchPoint {
		return bif.Point{}, continuation.Tangent{}, bif.ErrInvalidBifurcationType
	}
	form, err := ComputeBranchPoint(prob, sp.X, sp.P, es)
	if err != nil {
		return bif.Point{}, continuation.Tangent{}, err
	}
	d1, d2, ok := form.Directions()
	if !ok {
		return bif.Point{}, continuation.Tangent{}, bif.ErrInvalidBifurcationType
	}
	dir := d1
	if sp.Tangent.X != nil {
		a1 := math.Abs(d1.X.Dot(sp.Tangent.X) + d1.P*sp.Tangent.P)
		a2 := math.Abs(d2.X.Dot(sp.Tangent.X) + d2.P*sp.Tangent.P)
		if a2 < a1 {
			dir = d2
		}
	} else {
		dir = d2
	}

	for _, s := range []float64{ds, -ds} {
		pGuess := sp.P + s*dir.P
		defl := newton.NewDeflation(2, 1)
		if known := newton.Solve(prob, sp.X, pGuess, opts); known.Converged {
			defl.Push(known.X)
		}
		guess := sp.X.AddScaled(s, dir.X)
		res := newton.SolveDeflated(prob, defl, guess, pGuess, opts)
		if res.Converged {
			out := dir
			if s < 0 {
				out = continuation.Tangent{X: dir.X.Scale(-1), P: -dir.P}
			}
			return bif.Point{X: res.X, P: pGuess}, out, nil
		}
	}
	return bif.Point{}, continuation.Tangent{}, bif.ErrDeflatedNewtonFailed
}
