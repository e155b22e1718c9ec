// Package ma implements minimally-augmented formulations of fold and
// Hopf points: the base problem is extended with one (fold) or two
// (Hopf) scalar equations σ whose zeros pin the singularity as a regular
// root, so the Newton corrector can refine it or a continuation run can
// trace it in a second parameter.
//
// The test vectors a and b approximate the right/left null vectors of
// the singular Jacobian. They persist across continuation steps and must
// be refreshed periodically ([FoldProblem.Finalizer]); stale vectors
// make the bordered solves ill-conditioned.
package ma

import (
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// FoldProblem augments a base problem with the scalar σ(x, p) from the
// bordered solve [J a; bᵀ 0]·[v; σ] = [0; 1]. σ vanishes exactly when J
// is singular along a direction consistent with (a, b).
//
// As a [bif.Problem] its unknown is z = (x, p) with p embedded in the
// state; the explicit parameter argument is the second parameter of a
// codimension-2 continuation, applied through SecondParam (ignored when
// nil).
type FoldProblem struct {
	Base        bif.Problem
	A, B        bif.State
	BLS         linsolve.BorderedSolver
	Solver      linsolve.Solver
	SecondParam func(p2 float64)
	UpdateEvery int     // refresh a, b every K accepted steps; 0 disables
	FDEps       float64 // σ parameter-derivative step, default 1e-8
}

// NewFold validates the augmentation vectors and fills in defaults.
func NewFold(base bif.Problem, a, b bif.State, bls linsolve.BorderedSolver, solver linsolve.Solver) (*FoldProblem, error) {
	n := base.Dim()
	if len(a) != n || len(b) != n {
		return nil, bif.ErrDimensionMismatch
	}
	if a.Norm() == 0 || b.Norm() == 0 {
		return nil, bif.ErrInvalidState
	}
	if solver == nil {
		solver = linsolve.DenseLU{}
	}
	if bls == nil {
		bls = linsolve.Bordering{Base: solver}
	}
	return &FoldProblem{Base: base, A: a.Clone(), B: b.Clone(), BLS: bls, Solver: solver, FDEps: numdiff.DefaultEps}, nil
}

func (f *FoldProblem) Dim() int { return f.Base.Dim() + 1 }

// CloneProblem copies the mutable augmentation state so that two runs
// (or the two directions of a bothside run) can refresh their borders
// independently. SecondParam is carried as-is: codimension-2 callers
// wire one hook per copy.
func (f *FoldProblem) CloneProblem() bif.Problem {
	cp := *f
	cp.Base = bif.CloneProblem(f.Base)
	cp.A = f.A.Clone()
	cp.B = f.B.Clone()
	return &cp
}

func (f *FoldProblem) split(z bif.State) (bif.State, float64) {
	n := f.Base.Dim()
	return bif.State(z[:n]), z[n]
}

// Sigma evaluates the test function at (x, p), returning the right
// null-vector proxy v alongside. A non-converged bordered solve returns
// converged=false and the outputs must not be used.
func (f *FoldProblem) Sigma(x bif.State, p float64) (sigma float64, v bif.State, converged bool) {
	n := f.Base.Dim()
	j := f.Base.Jacobian(x, p)
	v, sigma, ok, _ := f.BLS.Solve(j, f.A, f.B, 0, make(bif.State, n), 1)
	return sigma, v, ok
}

// adjointSigma solves the adjoint bordered system for the left
// null-vector proxy w.
func (f *FoldProblem) adjointSigma(x bif.State, p float64) (w bif.State, converged bool) {
	n := f.Base.Dim()
	j := f.Base.Jacobian(x, p)
	w, _, ok, _ := linsolve.SolveAdjointBordered(f.BLS, j, f.A, f.B, 0, make(bif.State, n), 1)
	return w, ok
}

func (f *FoldProblem) Residual(z bif.State, p2 float64) bif.State {
	if f.SecondParam != nil {
		f.SecondParam(p2)
	}
	x, p := f.split(z)
	out := make(bif.State, f.Dim())
	copy(out, f.Base.Residual(x, p))
	sigma, _, ok := f.Sigma(x, p)
	if !ok {
		// Poison the residual so the outer Newton step registers the
		// failed bordered solve as divergence.
		out[len(out)-1] = math.NaN()
		return out
	}
	out[len(out)-1] = sigma
	return out
}

func (f *FoldProblem) Jacobian(z bif.State, p2 float64) bif.Jacobian {
	if f.SecondParam != nil {
		f.SecondParam(p2)
	}
	x, p := f.split(z)
	fj := &FoldJacobian{f: f, x: x.Clone(), p: p}
	fj.j = f.Base.Jacobian(x, p)
	fj.fp = numdiff.ParamDerivative(f.Base, x, p, 0)

	_, v, okV := f.Sigma(x, p)
	w, okW := f.adjointSigma(x, p)
	fj.v, fj.w = v, w
	fj.ok = okV && okW
	if fj.ok {
		fj.sigmaP = f.sigmaParamDeriv(x, p)
	}
	return fj
}

// sigmaParamDeriv computes ∂σ/∂p with a centered difference of two
// bordered solves.
func (f *FoldProblem) sigmaParamDeriv(x bif.State, p float64) float64 {
	eps := f.FDEps
	if eps == 0 {
		eps = numdiff.DefaultEps
	}
	sp, _, ok1 := f.Sigma(x, p+eps)
	sm, _, ok2 := f.Sigma(x, p-eps)
	if !ok1 || !ok2 {
		return math.NaN()
	}
	return (sp - sm) / (2 * eps)
}

// sigmaDir computes the directional derivative σ_x·d through the left
// null proxy: σ_x·d = −⟨w, d²F(x,p)[v, d]⟩, using the exact bilinear
// Hessian when the base problem provides one.
func (fj *FoldJacobian) sigmaDir(d bif.State) float64 {
	h := numdiff.HessianBilinear(fj.f.Base, fj.x, fj.p, fj.v, d, fj.f.FDEps)
	return -fj.w.Dot(h)
}

// FoldJacobian is the Jacobian of the augmented system
// [J F_p; σ_x σ_p], kept in factored form for the bordered elimination
// in [FoldSolver].
type FoldJacobian struct {
	f      *FoldProblem
	x      bif.State
	p      float64
	j      bif.Jacobian
	fp     bif.State
	v, w   bif.State
	sigmaP float64
	ok     bool
}

func (fj *FoldJacobian) Dim() int { return fj.f.Dim() }

func (fj *FoldJacobian) Apply(dst, src []float64) {
	n := fj.f.Base.Dim()
	fj.j.Apply(dst[:n], src[:n])
	dp := src[n]
	for i := 0; i < n; i++ {
		dst[i] += fj.fp[i] * dp
	}
	dst[n] = fj.sigmaDir(bif.State(src[:n])) + fj.sigmaP*dp
}

// FoldSolver solves the MA Newton systems by block elimination: two base
// solves J·x1 = rhs_u, J·x2 = F_p, two directional σ derivatives, then
// the closed-form division δp = (rhs_σ − σ_x·x1)/(σ_p − σ_x·x2).
type FoldSolver struct{}

func (FoldSolver) Solve(j bif.Jacobian, rhs []float64) (bif.State, bool, int) {
	fj, ok := j.(*FoldJacobian)
	if !ok || !fj.ok {
		return nil, false, 0
	}
	n := fj.f.Base.Dim()
	x1, ok1, it1 := fj.f.Solver.Solve(fj.j, rhs[:n])
	x2, ok2, it2 := fj.f.Solver.Solve(fj.j, fj.fp)
	if !ok1 || !ok2 {
		return nil, false, it1 + it2
	}
	den := fj.sigmaP - fj.sigmaDir(x2)
	if den == 0 || math.IsNaN(den) {
		return nil, false, it1 + it2
	}
	dp := (rhs[n] - fj.sigmaDir(x1)) / den
	out := make(bif.State, n+1)
	copy(out, x1.AddScaled(-dp, x2))
	out[n] = dp
	return out, out.IsValid(), it1 + it2
}

// Refine pins the fold near (x0, p0) by Newton on the augmented system.
func (f *FoldProblem) Refine(x0 bif.State, p0 float64, opts newton.Options) (bif.Point, newton.Result) {
	n := f.Base.Dim()
	z0 := make(bif.State, n+1)
	copy(z0, x0)
	z0[n] = p0
	opts.Solver = FoldSolver{}
	res := newton.Solve(f, z0, 0, opts)
	if len(res.X) != n+1 {
		return bif.Point{}, res
	}
	return bif.Point{X: bif.State(res.X[:n]).Clone(), P: res.X[n]}, res
}

// NullVectors returns the right and left null-vector proxies at (x, p)
// from one bordered and one adjoint bordered solve.
func (f *FoldProblem) NullVectors(x bif.State, p float64) (v, w bif.State, ok bool) {
	_, v, okV := f.Sigma(x, p)
	w, okW := f.adjointSigma(x, p)
	return v, w, okV && okW
}

// Refresh realigns a and b with the current null-space approximations.
// Returns false (leaving the vectors untouched) when either bordered
// solve fails.
func (f *FoldProblem) Refresh(x bif.State, p float64) bool {
	_, v, okV := f.Sigma(x, p)
	w, okW := f.adjointSigma(x, p)
	if !okV || !okW || v.Norm() == 0 || w.Norm() == 0 {
		return false
	}
	f.A = v.Scale(1 / v.Norm())
	f.B = w.Scale(1 / w.Norm())
	return true
}
