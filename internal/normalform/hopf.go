package normalform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/ma"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// Hopf carries the local model of a Hopf point: the frequency ω, the
// right/left critical eigenvectors normalized to ⟨p, q⟩ = 1, and the
// first Lyapunov coefficient l1 whose sign separates supercritical
// (l1 < 0, stable emitted cycle) from subcritical bifurcations.
type Hopf struct {
	Point bif.Point
	Omega float64
	Q, P  cvec
	L1    float64
}

// Supercritical reports whether the emitted periodic orbit is stable.
func (h Hopf) Supercritical() bool { return h.L1 < 0 }

// Degenerate reports a vanishing Lyapunov coefficient, the Bautin
// (generalized Hopf) degeneracy.
func (h Hopf) Degenerate(tol float64) bool { return math.Abs(h.L1) <= tol }

// CyclePredictor estimates the amplitude and initial profile of the
// periodic orbit at parameter offset dp from the Hopf point. It needs
// the transversality coefficient a = Re dλ/dp, estimated here from the
// rightmost pair at the shifted parameter.
func (h Hopf) CyclePredictor(prob bif.Problem, dp float64, es eigen.Solver) (x bif.State, amp float64, ok bool) {
	res := es.Eigen(prob.Jacobian(h.Point.X, h.Point.P+dp), 0)
	if !res.Converged {
		return nil, 0, false
	}
	idx := eigen.ClosestToAxis(res.Values)
	if idx < 0 {
		return nil, 0, false
	}
	a := real(res.Values[idx]) / dp
	arg := -a * dp / h.L1
	if arg < 0 {
		return nil, 0, false
	}
	amp = math.Sqrt(arg)
	return h.Point.X.AddScaled(2*amp, h.Q.re), amp, true
}

// cvec is a complex vector split into real and imaginary parts.
type cvec struct {
	re, im bif.State
}

func (c cvec) conj() cvec { return cvec{re: c.re, im: c.im.Scale(-1)} }

func (c cvec) add(o cvec) cvec {
	return cvec{re: c.re.AddScaled(1, o.re), im: c.im.AddScaled(1, o.im)}
}

func (c cvec) scale(s float64) cvec { return cvec{re: c.re.Scale(s), im: c.im.Scale(s)} }

func (c cvec) norm() float64 {
	return math.Hypot(c.re.Norm(), c.im.Norm())
}

// forms evaluates the multilinear forms B = d²F and C = d³F of the base
// problem at a fixed (x, p), extended to complex arguments blockwise.
type forms struct {
	prob bif.Problem
	x    bif.State
	p    float64
	eps  float64
}

// b computes the complex bilinear form B(u, v).
func (f forms) b(u, v cvec) cvec {
	rr := numdiff.HessianBilinear(f.prob, f.x, f.p, u.re, v.re, f.eps)
	ii := numdiff.HessianBilinear(f.prob, f.x, f.p, u.im, v.im, f.eps)
	ri := numdiff.HessianBilinear(f.prob, f.x, f.p, u.re, v.im, f.eps)
	ir := numdiff.HessianBilinear(f.prob, f.x, f.p, u.im, v.re, f.eps)
	return cvec{re: rr.AddScaled(-1, ii), im: ri.AddScaled(1, ir)}
}

// c computes the complex trilinear form C(u, v, w) by a centered
// difference of B(u, v) along the real and imaginary parts of w.
func (f forms) c(u, v, w cvec) cvec {
	eps := f.eps
	if eps == 0 {
		eps = 1e-5
	}
	d := func(dir bif.State) cvec {
		fp := forms{prob: f.prob, x: f.x.AddScaled(eps, dir), p: f.p, eps: f.eps}
		fm := forms{prob: f.prob, x: f.x.AddScaled(-eps, dir), p: f.p, eps: f.eps}
		bp, bm := fp.b(u, v), fm.b(u, v)
		return cvec{
			re: bp.re.AddScaled(-1, bm.re).Scale(1 / (2 * eps)),
			im: bp.im.AddScaled(-1, bm.im).Scale(1 / (2 * eps)),
		}
	}
	dr := d(w.re)
	di := d(w.im)
	// C(u, v, w.re + i·w.im) = D_re B + i·D_im B applied complex-linearly.
	return cvec{
		re: dr.re.AddScaled(-1, di.im),
		im: dr.im.AddScaled(1, di.re),
	}
}

// cdot is the Hermitian inner product ⟨u, v⟩ = Σ conj(u_i)·v_i.
func cdot(u, v cvec) (re, im float64) {
	re = u.re.Dot(v.re) + u.im.Dot(v.im)
	im = u.re.Dot(v.im) - u.im.Dot(v.re)
	return re, im
}

// shiftedSolve solves (2iω·I − J)·h = b on the real 2n embedding
// [[−J, −2ωI], [2ωI, −J]]·[hr; hi] = [br; bi].
func shiftedSolve(j *mat.Dense, omega float64, b cvec) (cvec, bool) {
	n := len(b.re)
	m := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			v := -j.At(i, k)
			m.Set(i, k, v)
			m.Set(n+i, n+k, v)
		}
		m.Set(i, n+i, -2*omega)
		m.Set(n+i, i, 2*omega)
	}
	rhs := make([]float64, 2*n)
	copy(rhs[:n], b.re)
	copy(rhs[n:], b.im)

	var lu mat.LU
	lu.Factorize(m)
	out := mat.NewVecDense(2*n, nil)
	if err := lu.SolveVecTo(out, false, mat.NewVecDense(2*n, rhs)); err != nil {
		return cvec{}, false
	}
	sol := out.RawVector().Data
	h := cvec{re: bif.State(sol[:n]).Clone(), im: bif.State(sol[n:]).Clone()}
	return h, h.re.IsValid() && h.im.IsValid()
}

// ComputeHopf evaluates the Hopf normal form at a refined Hopf point.
// The eigenvector pair and frequency come from a minimally-augmented
// bordered solve seeded by the eigen solver.
func ComputeHopf(prob bif.Problem, x bif.State, p float64, es eigen.Solver) (Hopf, error) {
	hp, omega, err := ma.HopfFromPoint(prob, x, p, es)
	if err != nil {
		return Hopf{}, err
	}
	n := prob.Dim()

	_, _, vv, okV := hp.Sigma(x, p, omega)
	ww, okW := hp.AdjointNull(x, p, omega)
	if !okV || !okW {
		return Hopf{}, bif.ErrLinearSolveFailed
	}
	q := cvec{re: bif.State(vv[:n]).Clone(), im: bif.State(vv[n:]).Clone()}
	w := cvec{re: bif.State(ww[:n]).Clone(), im: bif.State(ww[n:]).Clone()}

	if nrm := q.norm(); nrm > 0 {
		q = q.scale(1 / nrm)
	}
	// Rescale the adjoint vector so ⟨p, q⟩ = 1: p = w / conj(⟨w, q⟩).
	dr, di := cdot(w, q)
	den := dr*dr + di*di
	if den == 0 {
		return Hopf{}, bif.ErrLinearSolveFailed
	}
	pv := cvec{
		re: w.re.Scale(dr / den).AddScaled(-di/den, w.im),
		im: w.im.Scale(dr / den).AddScaled(di/den, w.re),
	}

	fm := forms{prob: prob, x: x, p: p}
	jm := bif.Materialize(prob.Jacobian(x, p))
	base := linsolve.DenseLU{}

	// h11 = −J⁻¹ B(q, q̄); real valued.
	bqq := fm.b(q, q.conj())
	h11re, ok, _ := base.Solve(bif.NewDense(jm), bqq.re)
	if !ok {
		return Hopf{}, bif.ErrLinearSolveFailed
	}
	h11 := cvec{re: h11re.Scale(-1), im: make(bif.State, n)}

	// h20 = (2iωI − J)⁻¹ B(q, q).
	h20, ok := shiftedSolve(jm, omega, fm.b(q, q))
	if !ok {
		return Hopf{}, bif.ErrLinearSolveFailed
	}

	g := fm.c(q, q, q.conj()).add(fm.b(q, h11).scale(2)).add(fm.b(q.conj(), h20))
	gr, _ := cdot(pv, g)
	return Hopf{
		Point: bif.Point{X: x.Clone(), P: p},
		Omega: omega,
		Q:     q,
		P:     pv,
		L1:    gr / (2 * omega),
	}, nil
}
