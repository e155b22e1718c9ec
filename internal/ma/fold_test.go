package ma

import (
	"math"
	"testing"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/events"
	"github.com/san-kum/bifurc/internal/linsolve"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/problems"
)

// Fold of p + x - x^3 at x = 1/sqrt(3), p = -2/(3 sqrt 3).
var (
	foldX = 1 / math.Sqrt(3)
	foldP = -2 / (3 * math.Sqrt(3))
)

func TestNewFoldValidation(t *testing.T) {
	base := problems.NewCubic()
	if _, err := NewFold(base, bif.State{1, 0}, bif.State{1}, nil, nil); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if _, err := NewFold(base, bif.State{0}, bif.State{1}, nil, nil); err == nil {
		t.Error("expected invalid state error for zero border")
	}
	if _, err := NewFold(base, bif.State{1}, bif.State{1}, nil, nil); err != nil {
		t.Errorf("valid borders rejected: %v", err)
	}
}

func TestSigmaVanishesAtFold(t *testing.T) {
	// The assembled bordered solver stays regular even when J itself is
	// exactly singular at the fold.
	fp, err := NewFold(problems.NewCubic(), bif.State{1}, bif.State{1}, linsolve.MatrixBordered{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sigma, _, ok := fp.Sigma(bif.State{foldX}, foldP)
	if !ok {
		t.Fatal("bordered solve failed")
	}
	if math.Abs(sigma) > 1e-10 {
		t.Errorf("sigma at the fold = %g, expected 0", sigma)
	}
	// Away from the fold sigma is distinctly nonzero.
	sigma, _, ok = fp.Sigma(bif.State{0}, 0)
	if !ok || math.Abs(sigma) < 1e-3 {
		t.Errorf("sigma away from the fold = %g", sigma)
	}
}

func TestFoldRefine(t *testing.T) {
	fp, err := FoldFromPoint(problems.NewCubic(), bif.State{0.6}, foldP+0.02, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	pt, res := fp.Refine(bif.State{0.6}, foldP+0.02, newton.Options{})
	if !res.Converged {
		t.Fatalf("refine did not converge: %s", res.Status)
	}
	if math.Abs(pt.X[0]-foldX) > 1e-8 {
		t.Errorf("refined x = %g, expected %g", pt.X[0], foldX)
	}
	if math.Abs(pt.P-foldP) > 1e-8 {
		t.Errorf("refined p = %g, expected %g", pt.P, foldP)
	}
}

func TestFoldRefineBratu(t *testing.T) {
	// The Bratu branch folds back at p ~= 3.51383. Start from a point on
	// the lower branch near the fold.
	prob := problems.NewBratu(20)
	x0 := make(bif.State, 20)
	start := newton.Solve(prob, x0, 3.45, newton.Options{})
	if !start.Converged {
		t.Fatal("initial bratu solve failed")
	}
	fp, err := FoldFromPoint(prob, start.X, 3.45, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	pt, res := fp.Refine(start.X, 3.45, newton.Options{MaxIter: 50})
	if !res.Converged {
		t.Fatalf("bratu fold refine failed: %s", res.Status)
	}
	if math.Abs(pt.P-3.51383) > 1e-2 {
		t.Errorf("bratu fold at p = %g, expected ~3.51383", pt.P)
	}
}

func TestNullVectors(t *testing.T) {
	fp, err := NewFold(problems.NewCubic(), bif.State{1}, bif.State{1}, linsolve.MatrixBordered{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, w, ok := fp.NullVectors(bif.State{foldX}, foldP)
	if !ok {
		t.Fatal("null vector solves failed")
	}
	// J = 0 at the fold, so J v and Jt w vanish trivially in 1D; the
	// proxies must be nonzero.
	if v.Norm() == 0 || w.Norm() == 0 {
		t.Errorf("degenerate null proxies v=%v w=%v", v, w)
	}
}

func TestRefresh(t *testing.T) {
	fp, err := NewFold(problems.NewCubic(), bif.State{0.5}, bif.State{0.5}, linsolve.MatrixBordered{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fp.Refresh(bif.State{foldX}, foldP) {
		t.Fatal("refresh failed")
	}
	if math.Abs(fp.A.Norm()-1) > 1e-12 || math.Abs(fp.B.Norm()-1) > 1e-12 {
		t.Errorf("refreshed borders not unit: |a|=%g |b|=%g", fp.A.Norm(), fp.B.Norm())
	}
}

func TestFoldResidualPoisonedOnFailure(t *testing.T) {
	// Borders chosen so the elimination denominator vanishes: the
	// augmented residual must go NaN, never silently zero.
	prob := &bif.FuncProblem{
		N: 2,
		R: func(x bif.State, p float64) bif.State { return x.Clone() },
		J: func(x bif.State, p float64) bif.Jacobian {
			return &bif.MatFree{N: 2, MulVec: func(dst, src []float64) { copy(dst, src) }}
		},
	}
	fp, err := NewFold(prob, bif.State{1, 0}, bif.State{0, 1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := fp.Residual(bif.State{0, 0, 0}, 0)
	if !math.IsNaN(r[2]) {
		t.Errorf("expected NaN test value, got %g", r[2])
	}
}

func TestFoldEvent(t *testing.T) {
	fp, err := NewFold(problems.NewCubic(), bif.State{1}, bif.State{1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ev := fp.Event()
	before := ev.Fn(&events.EvalContext{X: bif.State{0.4}, P: 0.4*0.4*0.4 - 0.4})[0]
	after := ev.Fn(&events.EvalContext{X: bif.State{0.75}, P: 0.75*0.75*0.75 - 0.75})[0]
	if before*after >= 0 {
		t.Errorf("sigma did not change sign across the fold: %g, %g", before, after)
	}
}

func TestBTEventBounded(t *testing.T) {
	fp, err := NewFold(problems.NewCubic(), bif.State{1}, bif.State{1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ev := fp.BTEvent()
	// Extended fold state (x, p).
	got := ev.Fn(&events.EvalContext{X: bif.State{foldX, foldP}})[0]
	if math.IsNaN(got) || math.Abs(got) > 1+1e-12 {
		t.Errorf("alignment out of range: %g", got)
	}
}

func TestCuspEventSign(t *testing.T) {
	// Quadratic coefficient at the cubic's fold is -+3x, nonzero away
	// from a cusp and opposite in sign at the two folds.
	fp, err := NewFold(problems.NewCubic(), bif.State{1}, bif.State{1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ev := fp.CuspEvent()
	right := ev.Fn(&events.EvalContext{X: bif.State{foldX, foldP}})[0]
	left := ev.Fn(&events.EvalContext{X: bif.State{-foldX, -foldP}})[0]
	if math.IsNaN(right) || math.IsNaN(left) {
		t.Fatal("cusp test value NaN")
	}
	if right*left >= 0 {
		t.Errorf("expected opposite signs at the two folds: %g, %g", right, left)
	}
}

func TestFoldCloneIndependent(t *testing.T) {
	fp, err := NewFold(problems.NewCubic(), bif.State{1}, bif.State{1}, linsolve.MatrixBordered{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cp := fp.CloneProblem().(*FoldProblem)
	cp.A[0], cp.B[0] = 0.5, -0.5
	if fp.A[0] != 1 || fp.B[0] != 1 {
		t.Fatalf("clone shares border storage: a=%g b=%g", fp.A[0], fp.B[0])
	}
	if !cp.Refresh(bif.State{foldX}, foldP) {
		t.Fatal("refresh on clone failed")
	}
	if fp.A[0] != 1 || fp.B[0] != 1 {
		t.Errorf("refresh on clone wrote into the original: a=%g b=%g", fp.A[0], fp.B[0])
	}
}

func TestFinalizerRefreshes(t *testing.T) {
	fp, err := NewFold(problems.NewCubic(), bif.State{0.3}, bif.State{0.3}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	fp.UpdateEvery = 2
	fin := fp.Finalizer()
	snap := continuation.Snapshot{X: bif.State{foldX, foldP}, Step: 2}
	if !fin(snap, nil) {
		t.Error("finalizer must never halt the run")
	}
	if math.Abs(fp.A.Norm()-1) > 1e-12 {
		t.Errorf("borders not refreshed, |a| = %g", fp.A.Norm())
	}
}
