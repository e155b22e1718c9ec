package ma

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// HopfProblem augments a base problem with the complex test function
// σ(x, p, ω) from the bordered solve of (J − iωI): σ = 0 exactly when J
// has the eigenvalue pair ±iω. The unknown is z = (x, p, ω) and the
// residual is [F; Re σ; Im σ].
//
// All complex arithmetic runs on the real 2N embedding
// [[J, ωI], [−ωI, J]]; the borders A, B hold the real and imaginary
// parts stacked as length-2N vectors.
type HopfProblem struct {
	Base        bif.Problem
	A, B        bif.State // length 2N: [re; im]
	Solver      linsolve.Solver
	SecondParam func(p2 float64)
	UpdateEvery int
	FDEps       float64
}

// NewHopf validates dimensions and fills in defaults.
func NewHopf(base bif.Problem, a, b bif.State, solver linsolve.Solver) (*HopfProblem, error) {
	n := base.Dim()
	if len(a) != 2*n || len(b) != 2*n {
		return nil, bif.ErrDimensionMismatch
	}
	if a.Norm() == 0 || b.Norm() == 0 {
		return nil, bif.ErrInvalidState
	}
	if solver == nil {
		solver = linsolve.DenseLU{}
	}
	return &HopfProblem{Base: base, A: a.Clone(), B: b.Clone(), Solver: solver, FDEps: numdiff.DefaultEps}, nil
}

func (h *HopfProblem) Dim() int { return h.Base.Dim() + 2 }

// CloneProblem copies the mutable border vectors so concurrent runs
// refresh them independently.
func (h *HopfProblem) CloneProblem() bif.Problem {
	cp := *h
	cp.Base = bif.CloneProblem(h.Base)
	cp.A = h.A.Clone()
	cp.B = h.B.Clone()
	return &cp
}

func (h *HopfProblem) split(z bif.State) (x bif.State, p, omega float64) {
	n := h.Base.Dim()
	return bif.State(z[:n]), z[n], z[n+1]
}

// assembleBordered builds the real (2N+2) form of the complex bordered
// system [(J−iωI) a; b* 0], or its adjoint.
func (h *HopfProblem) assembleBordered(x bif.State, p, omega float64, adjoint bool) *mat.Dense {
	n := h.Base.Dim()
	jm := bif.Materialize(h.Base.Jacobian(x, p))
	m := mat.NewDense(2*n+2, 2*n+2, nil)

	sign := omega
	col, row := h.A, h.B
	if adjoint {
		// (J−iωI)* = Jᵀ + iωI with the borders swapped.
		jm = mat.DenseCopyOf(jm.T())
		sign = -omega
		col, row = h.B, h.A
	}

	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			v := jm.At(i, k)
			m.Set(i, k, v)
			m.Set(n+i, n+k, v)
		}
		m.Set(i, n+i, sign)
		m.Set(n+i, i, -sign)
	}
	for i := 0; i < n; i++ {
		cr, ci := col[i], col[n+i]
		m.Set(i, 2*n, cr)
		m.Set(i, 2*n+1, -ci)
		m.Set(n+i, 2*n, ci)
		m.Set(n+i, 2*n+1, cr)

		rr, ri := row[i], row[n+i]
		m.Set(2*n, i, rr)
		m.Set(2*n, n+i, ri)
		m.Set(2*n+1, i, -ri)
		m.Set(2*n+1, n+i, rr)
	}
	return m
}

func solveAssembled(m *mat.Dense, rhs []float64) (bif.State, bool) {
	var lu mat.LU
	lu.Factorize(m)
	out := mat.NewVecDense(len(rhs), nil)
	if err := lu.SolveVecTo(out, false, mat.NewVecDense(len(rhs), rhs)); err != nil {
		return nil, false
	}
	sol := bif.State(out.RawVector().Data)
	return sol, sol.IsValid()
}

// Sigma evaluates the complex test function, returning the complex null
// proxy v as a stacked 2N vector.
func (h *HopfProblem) Sigma(x bif.State, p, omega float64) (sigmaRe, sigmaIm float64, v bif.State, converged bool) {
	n := h.Base.Dim()
	rhs := make([]float64, 2*n+2)
	rhs[2*n] = 1
	sol, ok := solveAssembled(h.assembleBordered(x, p, omega, false), rhs)
	if !ok {
		return 0, 0, nil, false
	}
	return sol[2*n], sol[2*n+1], bif.State(sol[:2*n]).Clone(), true
}

func (h *HopfProblem) adjointSigma(x bif.State, p, omega float64) (w bif.State, converged bool) {
	n := h.Base.Dim()
	rhs := make([]float64, 2*n+2)
	rhs[2*n] = 1
	sol, ok := solveAssembled(h.assembleBordered(x, p, omega, true), rhs)
	if !ok {
		return nil, false
	}
	return bif.State(sol[:2*n]).Clone(), true
}

func (h *HopfProblem) Residual(z bif.State, p2 float64) bif.State {
	if h.SecondParam != nil {
		h.SecondParam(p2)
	}
	x, p, omega := h.split(z)
	n := h.Base.Dim()
	out := make(bif.State, n+2)
	copy(out, h.Base.Residual(x, p))
	sr, si, _, ok := h.Sigma(x, p, omega)
	if !ok {
		out[n] = math.NaN()
		out[n+1] = math.NaN()
		return out
	}
	out[n], out[n+1] = sr, si
	return out
}

func (h *HopfProblem) Jacobian(z bif.State, p2 float64) bif.Jacobian {
	if h.SecondParam != nil {
		h.SecondParam(p2)
	}
	x, p, omega := h.split(z)
	hj := &HopfJacobian{h: h, x: x.Clone(), p: p, omega: omega}
	hj.j = h.Base.Jacobian(x, p)
	hj.fp = numdiff.ParamDerivative(h.Base, x, p, 0)

	_, _, v, okV := h.Sigma(x, p, omega)
	w, okW := h.adjointSigma(x, p, omega)
	hj.v, hj.w = v, w
	hj.ok = okV && okW
	if hj.ok {
		hj.sigmaPRe, hj.sigmaPIm, hj.ok = h.sigmaParamDeriv(x, p, omega)
		n := h.Base.Dim()
		wr, wi := bif.State(w[:n]), bif.State(w[n:])
		vr, vi := bif.State(v[:n]), bif.State(v[n:])
		// dσ/dω = i·(w*·v)
		s := wr.Dot(vr) + wi.Dot(vi)
		t := wr.Dot(vi) - wi.Dot(vr)
		hj.sigmaWRe, hj.sigmaWIm = -t, s
	}
	return hj
}

func (h *HopfProblem) sigmaParamDeriv(x bif.State, p, omega float64) (re, im float64, ok bool) {
	eps := h.FDEps
	if eps == 0 {
		eps = numdiff.DefaultEps
	}
	spr, spi, _, ok1 := h.Sigma(x, p+eps, omega)
	smr, smi, _, ok2 := h.Sigma(x, p-eps, omega)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return (spr - smr) / (2 * eps), (spi - smi) / (2 * eps), true
}

// HopfJacobian keeps the augmented Jacobian in factored form for the
// two-border elimination in [HopfSolver].
type HopfJacobian struct {
	h        *HopfProblem
	x        bif.State
	p, omega float64
	j        bif.Jacobian
	fp       bif.State
	v, w     bif.State // stacked complex, length 2N
	sigmaPRe float64
	sigmaPIm float64
	sigmaWRe float64
	sigmaWIm float64
	ok       bool
}

func (hj *HopfJacobian) Dim() int { return hj.h.Dim() }

// sigmaDir computes the complex directional derivative σ_x·d =
// −w*·(d²F[v, d]) blockwise on the real embedding.
func (hj *HopfJacobian) sigmaDir(d bif.State) (re, im float64) {
	n := hj.h.Base.Dim()
	wr, wi := bif.State(hj.w[:n]), bif.State(hj.w[n:])
	vr, vi := bif.State(hj.v[:n]), bif.State(hj.v[n:])
	hr := numdiff.HessianBilinear(hj.h.Base, hj.x, hj.p, vr, d, hj.h.FDEps)
	hi := numdiff.HessianBilinear(hj.h.Base, hj.x, hj.p, vi, d, hj.h.FDEps)
	return -(wr.Dot(hr) + wi.Dot(hi)), -(wr.Dot(hi) - wi.Dot(hr))
}

func (hj *HopfJacobian) Apply(dst, src []float64) {
	n := hj.h.Base.Dim()
	hj.j.Apply(dst[:n], src[:n])
	dp, dw := src[n], src[n+1]
	for i := 0; i < n; i++ {
		dst[i] += hj.fp[i] * dp
	}
	sr, si := hj.sigmaDir(bif.State(src[:n]))
	dst[n] = sr + hj.sigmaPRe*dp + hj.sigmaWRe*dw
	dst[n+1] = si + hj.sigmaPIm*dp + hj.sigmaWIm*dw
}

// HopfSolver eliminates the two border rows with two base solves and a
// closed-form 2×2 solve for (δp, δω).
type HopfSolver struct{}

func (HopfSolver) Solve(j bif.Jacobian, rhs []float64) (bif.State, bool, int) {
	hj, ok := j.(*HopfJacobian)
	if !ok || !hj.ok {
		return nil, false, 0
	}
	n := hj.h.Base.Dim()
	x1, ok1, it1 := hj.h.Solver.Solve(hj.j, rhs[:n])
	x2, ok2, it2 := hj.h.Solver.Solve(hj.j, hj.fp)
	if !ok1 || !ok2 {
		return nil, false, it1 + it2
	}
	s1r, s1i := hj.sigmaDir(x1)
	s2r, s2i := hj.sigmaDir(x2)

	a11, a12 := hj.sigmaPRe-s2r, hj.sigmaWRe
	a21, a22 := hj.sigmaPIm-s2i, hj.sigmaWIm
	det := a11*a22 - a12*a21
	if det == 0 || math.IsNaN(det) {
		return nil, false, it1 + it2
	}
	b1 := rhs[n] - s1r
	b2 := rhs[n+1] - s1i
	dp := (b1*a22 - a12*b2) / det
	dw := (a11*b2 - b1*a21) / det

	out := make(bif.State, n+2)
	copy(out, x1.AddScaled(-dp, x2))
	out[n], out[n+1] = dp, dw
	return out, out.IsValid(), it1 + it2
}

// Refine pins the Hopf point near (x0, p0) with frequency guess omega0.
func (h *HopfProblem) Refine(x0 bif.State, p0, omega0 float64, opts newton.Options) (bif.Point, float64, newton.Result) {
	n := h.Base.Dim()
	z0 := make(bif.State, n+2)
	copy(z0, x0)
	z0[n], z0[n+1] = p0, omega0
	opts.Solver = HopfSolver{}
	res := newton.Solve(h, z0, 0, opts)
	if len(res.X) != n+2 {
		return bif.Point{}, 0, res
	}
	return bif.Point{X: bif.State(res.X[:n]).Clone(), P: res.X[n]}, res.X[n+1], res
}

// AdjointNull returns the left null proxy w (stacked complex) at
// (x, p, ω).
func (h *HopfProblem) AdjointNull(x bif.State, p, omega float64) (bif.State, bool) {
	return h.adjointSigma(x, p, omega)
}

// Refresh realigns the borders with the current complex null proxies.
func (h *HopfProblem) Refresh(x bif.State, p, omega float64) bool {
	_, _, v, okV := h.Sigma(x, p, omega)
	w, okW := h.adjointSigma(x, p, omega)
	if !okV || !okW || v.Norm() == 0 || w.Norm() == 0 {
		return false
	}
	h.A = v.Scale(1 / v.Norm())
	h.B = w.Scale(1 / w.Norm())
	return true
}
