package ma

import (
	"math"
	"testing"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/eigen"
	"github.com/san-kum/bifurc/internal/newton"
	"github.com/san-kum/bifurc/internal/problems"
)

func TestNewHopfValidation(t *testing.T) {
	base := problems.NewHopfNormal()
	if _, err := NewHopf(base, bif.State{1, 0}, bif.State{1, 0, 0, 0}, nil); err == nil {
		t.Error("expected dimension mismatch for short border")
	}
	if _, err := NewHopf(base, make(bif.State, 4), bif.State{1, 0, 0, 0}, nil); err == nil {
		t.Error("expected invalid state for zero border")
	}
}

func TestHopfFromPoint(t *testing.T) {
	prob := problems.NewHopfNormal()
	hp, omega, err := HopfFromPoint(prob, bif.State{0, 0}, 0.05, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(omega-1) > 1e-10 {
		t.Errorf("frequency guess %g, expected 1", omega)
	}
	if hp.Base.Dim() != 2 || len(hp.A) != 4 {
		t.Errorf("borders not stacked: len(a)=%d", len(hp.A))
	}
}

func TestHopfFromPointNoPair(t *testing.T) {
	// The cubic has a purely real spectrum.
	_, _, err := HopfFromPoint(problems.NewCubic(), bif.State{0}, 0, eigen.Dense{WithVectors: true})
	if err == nil {
		t.Error("expected error when no complex pair exists")
	}
}

func TestHopfSigmaVanishesAtHopf(t *testing.T) {
	prob := problems.NewHopfNormal()
	hp, omega, err := HopfFromPoint(prob, bif.State{0, 0}, 0.05, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	sr, si, _, ok := hp.Sigma(bif.State{0, 0}, 0, omega)
	if !ok {
		t.Fatal("bordered solve failed")
	}
	if math.Hypot(sr, si) > 1e-10 {
		t.Errorf("sigma at the Hopf point = (%g, %g), expected 0", sr, si)
	}
	sr, si, _, ok = hp.Sigma(bif.State{0, 0}, 0.3, omega)
	if !ok || math.Hypot(sr, si) < 1e-4 {
		t.Errorf("sigma away from the Hopf point = (%g, %g)", sr, si)
	}
}

func TestHopfRefine(t *testing.T) {
	prob := problems.NewHopfNormal()
	hp, omega, err := HopfFromPoint(prob, bif.State{0, 0}, 0.05, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	pt, w, res := hp.Refine(bif.State{0.01, -0.01}, 0.05, omega*1.02, newton.Options{MaxIter: 40})
	if !res.Converged {
		t.Fatalf("refine did not converge: %s", res.Status)
	}
	if pt.X.Norm() > 1e-8 {
		t.Errorf("refined state %v, expected origin", pt.X)
	}
	if math.Abs(pt.P) > 1e-8 {
		t.Errorf("refined p = %g, expected 0", pt.P)
	}
	if math.Abs(w-1) > 1e-8 {
		t.Errorf("refined omega = %g, expected 1", w)
	}
}

func TestHopfRefresh(t *testing.T) {
	prob := problems.NewHopfNormal()
	hp, omega, err := HopfFromPoint(prob, bif.State{0, 0}, 0.05, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	if !hp.Refresh(bif.State{0, 0}, 0, omega) {
		t.Fatal("refresh failed")
	}
	if math.Abs(hp.A.Norm()-1) > 1e-12 || math.Abs(hp.B.Norm()-1) > 1e-12 {
		t.Errorf("refreshed borders not unit: |a|=%g |b|=%g", hp.A.Norm(), hp.B.Norm())
	}
}

func TestHopfCloneIndependent(t *testing.T) {
	hp, omega, err := HopfFromPoint(problems.NewHopfNormal(), bif.State{0, 0}, 0.05, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	a0 := hp.A.Clone()
	cp := hp.CloneProblem().(*HopfProblem)
	if !cp.Refresh(bif.State{0, 0}, 0, omega) {
		t.Fatal("refresh on clone failed")
	}
	cp.A[0] += 1
	for i := range a0 {
		if hp.A[i] != a0[i] {
			t.Fatalf("clone shares border storage at %d", i)
		}
	}
}

func TestHopfAdjointNull(t *testing.T) {
	prob := problems.NewHopfNormal()
	hp, omega, err := HopfFromPoint(prob, bif.State{0, 0}, 0.05, eigen.Dense{WithVectors: true})
	if err != nil {
		t.Fatal(err)
	}
	w, ok := hp.AdjointNull(bif.State{0, 0}, 0, omega)
	if !ok || len(w) != 4 || w.Norm() == 0 {
		t.Errorf("degenerate adjoint null proxy: %v (ok=%v)", w, ok)
	}
}
