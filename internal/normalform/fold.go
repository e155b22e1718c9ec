// Package normalform reduces the nonlinear map near a detected
// singularity to a low-order local model: quadratic fold coefficients,
// the Hopf frequency and first Lyapunov coefficient, and the algebraic
// branching equation at branch points. The reduced models feed the
// predictors used for branch switching.
package normalform

import (
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/ma"
	"github.com/san-kum/bifurc/internal/numdiff"
)

// Fold is the quadratic normal form a·δp + b·ξ² = 0 of a simple fold.
type Fold struct {
	Point bif.Point
	V, W  bif.State // right/left null vectors, v normalized, ⟨w,v⟩ = 1
	A     float64   // ⟨w, F_p⟩
	B     float64   // ½⟨w, d²F[v, v]⟩
}

// ComputeFold evaluates the fold coefficients at a refined fold point.
func ComputeFold(prob bif.Problem, x bif.State, p float64, es eigen.Solver) (Fold, error) {
	fp, err := ma.FoldFromPoint(prob, x, p, es)
	if err != nil {
		return Fold{}, err
	}
	v, w, ok := fp.NullVectors(x, p)
	if !ok {
		return Fold{}, bif.ErrLinearSolveFailed
	}
	if nrm := v.Norm(); nrm > 0 {
		v = v.Scale(1 / nrm)
	}
	if d := w.Dot(v); d != 0 {
		w = w.Scale(1 / d)
	}
	fpDeriv := numdiff.ParamDerivative(prob, x, p, 0)
	h := numdiff.HessianBilinear(prob, x, p, v, v, 0)
	return Fold{
		Point: bif.Point{X: x.Clone(), P: p},
		V:     v,
		W:     w,
		A:     w.Dot(fpDeriv),
		B:     0.5 * w.Dot(h),
	}, nil
}

// Degenerate reports a vanishing coefficient, i.e. a cusp candidate
// where the quadratic predictor is unusable.
func (f Fold) Degenerate(tol float64) bool {
	return math.Abs(f.B) <= tol || math.Abs(f.A) <= tol
}

// Predictor returns the two coexisting solutions near the fold for a
// parameter offset dp on the side of the fold where they exist:
// x ≈ x* ± ξ·v with ξ = sqrt(−a·dp/b).
func (f Fold) Predictor(dp float64) (bif.Point, bif.Point, bool) {
	arg := -f.A * dp / f.B
	if arg < 0 {
		return bif.Point{}, bif.Point{}, false
	}
	xi := math.Sqrt(arg)
	p := f.Point.P + dp
	return bif.Point{X: f.Point.X.AddScaled(xi, f.V), P: p},
		bif.Point{X: f.Point.X.AddScaled(-xi, f.V), P: p},
		true
}
