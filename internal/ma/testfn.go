package ma

import (
	"math"
	"math/cmplx"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/events"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// Event exposes σ as a continuous test function for a regular (base)
// continuation run, so folds are detected as zeros of the MA test
// function rather than tangent sign flips.
func (f *FoldProblem) Event() events.Event {
	return events.Scalar("sigma-fold", bif.Fold, func(ctx *events.EvalContext) float64 {
		sigma, _, ok := f.Sigma(ctx.X, ctx.P)
		if !ok {
			return math.NaN()
		}
		return sigma
	})
}

// BTEvent detects Bogdanov-Takens points along a fold curve as the
// alignment ⟨v, w⟩ of the right and left null proxies crossing zero.
// The context state is the extended fold unknown (x, p).
func (f *FoldProblem) BTEvent() events.Event {
	return events.Scalar("bogdanov-takens", bif.BogdanovTakens, func(ctx *events.EvalContext) float64 {
		x, p := f.split(ctx.X)
		_, v, okV := f.Sigma(x, p)
		w, okW := f.adjointSigma(x, p)
		if !okV || !okW {
			return math.NaN()
		}
		nv, nw := v.Norm(), w.Norm()
		if nv == 0 || nw == 0 {
			return math.NaN()
		}
		return v.Dot(w) / (nv * nw)
	})
}

// CuspEvent detects cusps along a fold curve as the quadratic normal
// form coefficient b = ½⟨w, d²F[v, v]⟩ crossing zero.
func (f *FoldProblem) CuspEvent() events.Event {
	return events.Scalar("cusp", bif.Cusp, func(ctx *events.EvalContext) float64 {
		x, p := f.split(ctx.X)
		_, v, okV := f.Sigma(x, p)
		w, okW := f.adjointSigma(x, p)
		if !okV || !okW {
			return math.NaN()
		}
		h := numdiff.HessianBilinear(f.Base, x, p, v, v, f.FDEps)
		return 0.5 * w.Dot(h)
	})
}

// ZeroHopfEvent detects zero-Hopf points along a fold curve as a change
// in the count of strictly unstable eigenvalues of the base Jacobian.
// The fold's own near-zero eigenvalue sits below the threshold and does
// not contribute.
func (f *FoldProblem) ZeroHopfEvent(es eigen.Solver) events.Event {
	const threshold = 1e-8
	return events.Event{
		Kind:   events.Discrete,
		Labels: []string{"zero-hopf"},
		Type:   bif.ZeroHopf,
		Fn: func(ctx *events.EvalContext) []float64 {
			x, p := f.split(ctx.X)
			res := es.Eigen(f.Base.Jacobian(x, p), 0)
			if !res.Converged {
				return []float64{math.NaN()}
			}
			n := 0
			for _, v := range res.Values {
				if real(v) > threshold {
					n++
				}
			}
			return []float64{float64(n)}
		},
	}
}

// Finalizer returns a continuation hook refreshing the fold borders
// every UpdateEvery accepted steps. With UpdateEvery = 0 the hook is a
// no-op that never halts the run. The hook writes this problem's
// borders, so it pairs with a single-direction run.
func (f *FoldProblem) Finalizer() func(continuation.Snapshot, *continuation.Branch) bool {
	return func(s continuation.Snapshot, _ *continuation.Branch) bool {
		if f.UpdateEvery > 0 && s.Step > 0 && s.Step%f.UpdateEvery == 0 {
			x, p := f.split(s.X)
			f.Refresh(x, p)
		}
		return true
	}
}

// Finalizer is the Hopf analogue of [FoldProblem.Finalizer].
func (h *HopfProblem) Finalizer() func(continuation.Snapshot, *continuation.Branch) bool {
	return func(s continuation.Snapshot, _ *continuation.Branch) bool {
		if h.UpdateEvery > 0 && s.Step > 0 && s.Step%h.UpdateEvery == 0 {
			x, p, omega := h.split(s.X)
			h.Refresh(x, p, omega)
		}
		return true
	}
}

// FoldFromPoint builds a fold MA problem seeded at (x, p): the border
// vectors are initialized from the eigenvector of the eigenvalue closest
// to zero.
func FoldFromPoint(base bif.Problem, x bif.State, p float64, es eigen.Solver) (*FoldProblem, error) {
	res := es.Eigen(base.Jacobian(x, p), 0)
	if !res.Converged || res.Vectors == nil {
		return nil, bif.ErrLinearSolveFailed
	}
	n := base.Dim()
	idx, best := 0, math.Inf(1)
	for i, v := range res.Values {
		if m := cmplx.Abs(v); m < best {
			best, idx = m, i
		}
	}
	a := make(bif.State, n)
	for i := 0; i < n; i++ {
		a[i] = real(res.Vectors.At(i, idx))
	}
	if nrm := a.Norm(); nrm > 0 {
		a = a.Scale(1 / nrm)
	} else {
		a[0] = 1
	}
	return NewFold(base, a, a.Clone(), nil, nil)
}

// HopfFromPoint builds a Hopf MA problem seeded at (x, p), returning the
// frequency guess taken from the complex pair nearest the imaginary
// axis. The stacked borders come from that pair's eigenvector.
func HopfFromPoint(base bif.Problem, x bif.State, p float64, es eigen.Solver) (*HopfProblem, float64, error) {
	res := es.Eigen(base.Jacobian(x, p), 0)
	if !res.Converged || res.Vectors == nil {
		return nil, 0, bif.ErrLinearSolveFailed
	}
	n := base.Dim()
	idx, best := -1, math.Inf(1)
	for i, v := range res.Values {
		if math.Abs(imag(v)) < 1e-10 {
			continue
		}
		if d := math.Abs(real(v)); d < best {
			best, idx = d, i
		}
	}
	if idx < 0 {
		return nil, 0, bif.ErrInvalidBifurcationType
	}
	omega := math.Abs(imag(res.Values[idx]))
	a := make(bif.State, 2*n)
	for i := 0; i < n; i++ {
		a[i] = real(res.Vectors.At(i, idx))
		a[n+i] = imag(res.Vectors.At(i, idx))
	}
	if nrm := a.Norm(); nrm > 0 {
		a = a.Scale(1 / nrm)
	} else {
		a[0] = 1
	}
	hp, err := NewHopf(base, a, a.Clone(), nil)
	return hp, omega, err
}
