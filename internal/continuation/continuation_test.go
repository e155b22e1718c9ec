package continuation

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/events"
	"github.com/san-kum/bifurc/internal/problems"
)

func cubicOpts() Options {
	return Options{
		Ds:       0.02,
		DsMax:    0.05,
		MaxSteps: 200,
		PMin:     -2,
		PMax:     2,
	}
}

func TestRunCubicForward(t *testing.T) {
	it, err := New(problems.NewCubic(), cubicOpts())
	if err != nil {
		t.Fatal(err)
	}
	br, err := it.Run(context.Background(), bif.State{-1.2}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	if br.Len() < 10 {
		t.Fatalf("branch too short: %d points", br.Len())
	}
	// Every accepted point must satisfy F = 0.
	prob := problems.NewCubic()
	for _, s := range br.Points {
		if rn := prob.Residual(s.X, s.P).Norm(); rn > 1e-8 {
			t.Errorf("step %d: residual %g", s.Step, rn)
		}
	}
}

func TestRunInvalidInitialPoint(t *testing.T) {
	prob := &bif.FuncProblem{
		N: 1,
		R: func(x bif.State, p float64) bif.State {
			return bif.State{x[0]*x[0] + 1}
		},
		J: func(x bif.State, p float64) bif.Jacobian {
			return &bif.MatFree{N: 1, MulVec: func(dst, src []float64) {
				dst[0] = 2 * x[0] * src[0]
			}}
		},
	}
	it, _ := New(prob, cubicOpts())
	if _, err := it.Run(context.Background(), bif.State{1}, 0); err == nil {
		t.Error("expected error for non-convergent initial point")
	}
}

func TestArclengthConstraintPerStep(t *testing.T) {
	prob := problems.NewCubic()
	it, _ := New(prob, cubicOpts())
	br, err := it.Run(context.Background(), bif.State{-1.2}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	// Each accepted step sits at weighted distance ds from its
	// predecessor along the recorded predictor tangent... the constraint
	// uses the tangent at the previous point, recorded there.
	for i := 1; i < br.Len(); i++ {
		prev, cur := br.Points[i-1], br.Points[i]
		c := it.m.dot(cur.X.Sub(prev.X), cur.P-prev.P, prev.Tangent.X, prev.Tangent.P)
		if math.Abs(c-cur.Ds) > 1e-8 {
			t.Errorf("step %d: constraint %g vs ds %g", cur.Step, c, cur.Ds)
		}
	}
}

func TestCubicFoldDetection(t *testing.T) {
	opts := cubicOpts()
	opts.Events = events.NewSet(events.FoldTangent())
	br, err := RunBothside(context.Background(), problems.NewCubic(), opts,
		bif.State{-1.5}, -1, OrientForward)
	if err != nil {
		t.Fatal(err)
	}

	folds := br.SpecialOfType(bif.Fold)
	if len(folds) != 2 {
		t.Fatalf("expected 2 folds, got %d: %v", len(folds), folds)
	}
	// Folds of p + x - x^3 sit at x = +-1/sqrt(3), p = -+2/(3 sqrt 3).
	xStar := 1 / math.Sqrt(3)
	pStar := 2 / (3 * math.Sqrt(3))
	for _, sp := range folds {
		if math.Abs(math.Abs(sp.X[0])-xStar) > 1e-3 {
			t.Errorf("fold at x=%g, expected |x|=%g", sp.X[0], xStar)
		}
		if math.Abs(math.Abs(sp.P)-pStar) > 1e-3 {
			t.Errorf("fold at p=%g, expected |p|=%g", sp.P, pStar)
		}
		if sp.P*sp.X[0] > 0 {
			t.Errorf("fold signs inconsistent: x=%g p=%g", sp.X[0], sp.P)
		}
	}
}

func TestPitchforkBranchPointDetection(t *testing.T) {
	opts := cubicOpts()
	opts.Events = events.NewSet(events.StabilityChange())
	opts.ComputeEigen = true
	it, _ := New(problems.NewPitchfork(), opts)
	// Trivial branch x = 0 loses stability at p = 0.
	br, err := it.Run(context.Background(), bif.State{0}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	bps := br.SpecialOfType(bif.BranchPoint)
	if len(bps) != 1 {
		t.Fatalf("expected 1 branch point, got %d", len(bps))
	}
	if math.Abs(bps[0].P) > 0.1 {
		t.Errorf("branch point at p=%g, expected near 0", bps[0].P)
	}
}

func TestParamBoundStatus(t *testing.T) {
	opts := cubicOpts()
	opts.PMax = 0.2
	it, _ := New(problems.NewCubic(), opts)
	br, err := it.Run(context.Background(), bif.State{-1.2}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	if br.Status != StatusParamBound {
		t.Errorf("expected param bound status, got %s", br.Status)
	}
	last, _ := br.Last()
	if last.P <= opts.PMax-0.1 {
		t.Errorf("stopped too early at p=%g", last.P)
	}
}

func TestNegativeDsRunsBackward(t *testing.T) {
	opts := cubicOpts()
	opts.Ds = -0.02
	it, _ := New(problems.NewCubic(), opts)
	br, err := it.Run(context.Background(), bif.State{-1.2}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	last, _ := br.Last()
	if last.P >= -0.5 {
		t.Errorf("expected decreasing parameter, ended at p=%g", last.P)
	}
	// ds magnitudes stay positive on the snapshots.
	for _, s := range br.Points {
		if s.Ds < 0 {
			t.Errorf("step %d carries negative ds %g", s.Step, s.Ds)
		}
	}
}

func TestFinalizerHalts(t *testing.T) {
	opts := cubicOpts()
	opts.Finalizer = func(s Snapshot, br *Branch) bool {
		return s.Step < 5
	}
	it, _ := New(problems.NewCubic(), opts)
	br, err := it.Run(context.Background(), bif.State{-1.2}, -0.5)
	if err != nil {
		t.Fatal(err)
	}
	if br.Status != StatusHalted {
		t.Errorf("expected halted status, got %s", br.Status)
	}
	if br.Len() != 6 {
		t.Errorf("expected 6 points (steps 0..5), got %d", br.Len())
	}
}

func TestRecordPanicDoesNotAbort(t *testing.T) {
	opts := cubicOpts()
	opts.MaxSteps = 10
	opts.Record = func(x bif.State, p float64) { panic("boom") }
	it, _ := New(problems.NewCubic(), opts)
	if _, err := it.Run(context.Background(), bif.State{-1.2}, -0.5); err != nil {
		t.Errorf("panicking record hook aborted the run: %v", err)
	}
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it, _ := New(problems.NewCubic(), cubicOpts())
	br, err := it.Run(ctx, bif.State{-1.2}, -0.5)
	if err == nil {
		t.Error("expected context error")
	}
	if br.Status != StatusCanceled {
		t.Errorf("expected canceled status, got %s", br.Status)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"theta too big", func(o *Options) { o.Theta = 1.5 }},
		{"negative ds_min", func(o *Options) { o.DsMin = -1 }},
		{"inverted window", func(o *Options) { o.PMin, o.PMax = 1, -1 }},
		{"ds_max below ds_min", func(o *Options) { o.DsMin, o.DsMax = 0.1, 0.01 }},
	}
	for _, tt := range tests {
		opts := cubicOpts()
		tt.mutate(&opts)
		if _, err := New(problems.NewCubic(), opts); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func snapAt(p float64, step int) Snapshot {
	return Snapshot{X: bif.State{p * p}, P: p, Step: step}
}

func TestMerge(t *testing.T) {
	backward := &Branch{
		Points: []Snapshot{snapAt(0, 0), snapAt(-0.1, 1), snapAt(-0.2, 2)},
		Special: []SpecialPoint{
			{Type: bif.Fold, P: -0.15, Index: 2},
		},
		Status: StatusParamBound,
	}
	forward := &Branch{
		Points: []Snapshot{snapAt(0, 0), snapAt(0.1, 1)},
		Special: []SpecialPoint{
			{Type: bif.Hopf, P: 0.05, Index: 1},
		},
		Status: StatusMaxSteps,
	}

	merged := Merge(backward, forward, OrientForward)
	if merged.Len() != 4 {
		t.Fatalf("expected 4 points (shared start kept once), got %d", merged.Len())
	}
	// Parameter runs monotonically from the backward far end.
	wantP := []float64{-0.2, -0.1, 0, 0.1}
	for i, w := range wantP {
		if merged.Points[i].P != w {
			t.Errorf("point %d: expected p=%g, got %g", i, w, merged.Points[i].P)
		}
		if merged.Points[i].Step != i {
			t.Errorf("point %d: step not reindexed, got %d", i, merged.Points[i].Step)
		}
	}
	if len(merged.Special) != 2 {
		t.Fatalf("expected 2 special points, got %d", len(merged.Special))
	}
	// The backward fold at index 2 maps to merged index 0.
	if merged.Special[0].Type != bif.Fold || merged.Special[0].Index != 0 {
		t.Errorf("backward special misplaced: %+v", merged.Special[0])
	}
	// The forward hopf at index 1 maps past the shared start: 3 - 1 + 1.
	if merged.Special[1].Type != bif.Hopf || merged.Special[1].Index != 3 {
		t.Errorf("forward special misplaced: %+v", merged.Special[1])
	}
	if merged.Status != StatusMaxSteps {
		t.Errorf("expected forward status to win, got %s", merged.Status)
	}
}

func TestMergeNilHalves(t *testing.T) {
	fwd := &Branch{Points: []Snapshot{snapAt(0, 0)}, Status: StatusMaxSteps}
	m := Merge(nil, fwd, OrientForward)
	if m.Len() != 1 {
		t.Errorf("nil backward: expected 1 point, got %d", m.Len())
	}
	m = Merge(fwd, nil, OrientForward)
	if m.Len() != 1 {
		t.Errorf("nil forward: expected 1 point, got %d", m.Len())
	}
}

func TestRunBothsideCoversWindow(t *testing.T) {
	opts := cubicOpts()
	opts.PMin, opts.PMax = -0.3, 0.3
	br, err := RunBothside(context.Background(), problems.NewCubic(), opts,
		bif.State{-1.2}, 0, OrientForward)
	if err != nil {
		t.Fatal(err)
	}
	first := br.Points[0].P
	last := br.Points[br.Len()-1].P
	if first > -0.29 || last < 0.29 {
		t.Errorf("window not covered: [%g, %g]", first, last)
	}
	for i := 1; i < br.Len(); i++ {
		if br.Points[i].P < br.Points[i-1].P {
			t.Fatalf("merged branch not monotone at %d", i)
		}
	}
}

func TestRunBothsideClonesMutableProblem(t *testing.T) {
	// A parameter lens writes its wrapped system on every evaluation, so
	// the two directions must each run on their own copy. With a shared
	// system each direction evaluates at the other's parameter and the
	// accepted points stop satisfying F = 0.
	prob := bif.WithLens(problems.NewCuspSystem(), "b")
	br, err := RunBothside(context.Background(), prob, cubicOpts(),
		bif.State{-1.5}, -1, OrientForward)
	if err != nil {
		t.Fatal(err)
	}
	if br.Len() < 10 {
		t.Fatalf("branch too short: %d points", br.Len())
	}
	fresh := bif.WithLens(problems.NewCuspSystem(), "b")
	for _, s := range br.Points {
		if rn := fresh.Residual(s.X, s.P).Norm(); rn > 1e-8 {
			t.Errorf("step %d: residual %g at p=%g", s.Step, rn, s.P)
		}
	}
}

// flakyEigen fails every second eigensolve.
type flakyEigen struct {
	inner eigen.Dense
	calls int
}

func (s *flakyEigen) Eigen(j bif.Jacobian, nev int) eigen.Result {
	s.calls++
	if s.calls%2 == 0 {
		return eigen.Result{}
	}
	return s.inner.Eigen(j, nev)
}

func TestEigenFailureSkipsEventStep(t *testing.T) {
	// The middle branch of the cubic keeps exactly one unstable
	// eigenvalue between the folds. A failed eigensolve must pause
	// detection for that step, not report the count dropping to zero.
	opts := cubicOpts()
	opts.PMin, opts.PMax = -0.3, 0.3
	opts.Events = events.NewSet(events.StabilityChange())
	opts.EigenSolver = &flakyEigen{}
	it, err := New(problems.NewCubic(), opts)
	if err != nil {
		t.Fatal(err)
	}
	br, err := it.Run(context.Background(), bif.State{0}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if br.Len() < 5 {
		t.Fatalf("branch too short: %d points", br.Len())
	}
	for _, sp := range br.Special {
		t.Errorf("spurious %s at p=%g", sp.Type, sp.P)
	}
	for _, s := range br.Points {
		if s.Eigenvalues != nil && s.NUnstable != 1 {
			t.Errorf("step %d: n_unstable %d, expected 1", s.Step, s.NUnstable)
		}
	}
}

func TestMetricNormalize(t *testing.T) {
	m := metric{theta: 0.5, n: 2}
	tan := m.normalize(Tangent{X: bif.State{3, 4}, P: 2})
	if nrm := m.norm(tan.X, tan.P); math.Abs(nrm-1) > 1e-12 {
		t.Errorf("normalized tangent has weighted norm %g", nrm)
	}
}
