package continuation

import (
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// metric is the θ-weighted inner product on (x, p) space used for the
// arclength constraint and tangent normalization.
type metric struct {
	theta float64
	n     int
}

func (m metric) dot(x1 bif.State, p1 float64, x2 bif.State, p2 float64) float64 {
	return m.theta*x1.Dot(x2)/float64(m.n) + (1-m.theta)*p1*p2
}

func (m metric) norm(x bif.State, p float64) float64 {
	return math.Sqrt(m.dot(x, p, x, p))
}

// normalize rescales t to unit weighted norm.
func (m metric) normalize(t Tangent) Tangent {
	nrm := m.norm(t.X, t.P)
	if nrm == 0 {
		return t
	}
	return Tangent{X: t.X.Scale(1 / nrm), P: t.P / nrm}
}

// naturalTangent computes the exact branch direction at (x, p) from
// J·dx = -F_p, normalized and oriented toward increasing p.
func naturalTangent(prob bif.Problem, x bif.State, p float64, solver linsolve.Solver, m metric) (Tangent, bool) {
	fp := numdiff.ParamDerivative(prob, x, p, 0)
	rhs := fp.Scale(-1)
	dx, ok, _ := solver.Solve(prob.Jacobian(x, p), rhs)
	if !ok {
		return Tangent{}, false
	}
	return m.normalize(Tangent{X: dx, P: 1}), true
}

// secantTangent computes the normalized secant direction between two
// consecutive accepted points.
func secantTangent(prev, cur bif.Point, m metric) Tangent {
	return m.normalize(Tangent{X: cur.X.Sub(prev.X), P: cur.P - prev.P})
}

// palcProblem is the arclength-augmented system solved by the corrector:
// the base residual plus the scalar constraint
// ⟨tangent, z - z_prev⟩_θ = ds over the extended unknown z = (x, p).
type palcProblem struct {
	prob bif.Problem
	prev bif.Point
	tan  Tangent
	ds   float64
	m    metric
}

func (pp *palcProblem) Dim() int { return pp.prob.Dim() + 1 }

func (pp *palcProblem) Residual(z bif.State, _ float64) bif.State {
	n := pp.prob.Dim()
	x, p := bif.State(z[:n]), z[n]
	f := pp.prob.Residual(x, p)
	c := pp.m.dot(x.Sub(pp.prev.X), p-pp.prev.P, pp.tan.X, pp.tan.P) - pp.ds
	out := make(bif.State, n+1)
	copy(out, f)
	out[n] = c
	return out
}

func (pp *palcProblem) Jacobian(z bif.State, _ float64) bif.Jacobian {
	n := pp.prob.Dim()
	x, p := bif.State(z[:n]).Clone(), z[n]
	return &palcJacobian{
		j:  pp.prob.Jacobian(x, p),
		fp: numdiff.ParamDerivative(pp.prob, x, p, 0),
		pp: pp,
	}
}

type palcJacobian struct {
	j  bif.Jacobian
	fp bif.State
	pp *palcProblem
}

func (pj *palcJacobian) Dim() int { return pj.j.Dim() + 1 }

func (pj *palcJacobian) Apply(dst, src []float64) {
	n := pj.j.Dim()
	pj.j.Apply(dst[:n], src[:n])
	dp := src[n]
	for i := 0; i < n; i++ {
		dst[i] += pj.fp[i] * dp
	}
	dst[n] = pj.pp.m.dot(bif.State(src[:n]), dp, pj.pp.tan.X, pj.pp.tan.P)
}

// palcSolver solves the corrector's augmented linear system with one
// bordered solve per Newton iteration: the tangent plays the role of the
// border row and F_p the border column.
type palcSolver struct {
	bls linsolve.BorderedSolver
}

func (s palcSolver) Solve(j bif.Jacobian, rhs []float64) (bif.State, bool, int) {
	pj, ok := j.(*palcJacobian)
	if !ok {
		return nil, false, 0
	}
	n := pj.j.Dim()
	m := pj.pp.m
	border := pj.pp.tan.X.Scale(m.theta / float64(m.n))
	corner := (1 - m.theta) * pj.pp.tan.P

	v, sigma, ok, iters := s.bls.Solve(pj.j, pj.fp, border, corner, bif.State(rhs[:n]), rhs[n])
	if !ok {
		return nil, false, iters
	}
	out := make(bif.State, n+1)
	copy(out, v)
	out[n] = sigma
	return out, true, iters
}

// correct runs the bordered Newton corrector from the arclength
// predictor and splits the converged extended state back into a point.
func correct(prob bif.Problem, prev bif.Point, tan Tangent, ds float64, m metric, nopts newton.Options, bls linsolve.BorderedSolver) (bif.Point, newton.Result) {
	n := prob.Dim()
	z0 := make(bif.State, n+1)
	copy(z0, prev.X.AddScaled(ds, tan.X))
	z0[n] = prev.P + ds*tan.P

	nopts.Solver = palcSolver{bls: bls}
	pp := &palcProblem{prob: prob, prev: prev, tan: tan, ds: ds, m: m}
	res := newton.Solve(pp, z0, 0, nopts)

	pt := bif.Point{}
	if len(res.X) == n+1 {
		pt = bif.Point{X: bif.State(res.X[:n]).Clone(), P: res.X[n]}
	}
	return pt, res
}
