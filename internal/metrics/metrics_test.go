package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
)

func syntheticBranch() *continuation.Branch {
	return &continuation.Branch{
		Points: []continuation.Snapshot{
			{X: bif.State{0}, P: 0, NewtonIters: 2, NUnstable: 0},
			{X: bif.State{3}, P: 4, NewtonIters: 4, NUnstable: 0},
			{X: bif.State{3}, P: 5, NewtonIters: 3, NUnstable: 1},
			{X: bif.State{3}, P: 6, NewtonIters: 3, NUnstable: 1},
		},
		Special: []continuation.SpecialPoint{
			{Type: bif.Fold, P: 4.5},
			{Type: bif.Fold, P: 5.5},
			{Type: bif.Hopf, P: 5.8},
		},
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil)
	if s.Arclength != 0 || len(s.Segments) != 0 {
		t.Errorf("nil branch: %+v", s)
	}
	s = Compute(&continuation.Branch{})
	if s.Arclength != 0 {
		t.Errorf("empty branch: %+v", s)
	}
}

func TestCompute(t *testing.T) {
	s := Compute(syntheticBranch())

	// Segment lengths 5, 1, 1.
	if math.Abs(s.Arclength-7) > 1e-12 {
		t.Errorf("arclength %g, expected 7", s.Arclength)
	}
	if s.ParamSpan != [2]float64{0, 6} {
		t.Errorf("param span %v", s.ParamSpan)
	}
	if s.MaxNewton != 4 {
		t.Errorf("max newton %d", s.MaxNewton)
	}
	if math.Abs(s.MeanNewton-3) > 1e-12 {
		t.Errorf("mean newton %g", s.MeanNewton)
	}
	if s.StableFraction != 0.5 {
		t.Errorf("stable fraction %g", s.StableFraction)
	}
	if s.SpecialCounts[bif.Fold] != 2 || s.SpecialCounts[bif.Hopf] != 1 {
		t.Errorf("special counts %v", s.SpecialCounts)
	}
}

func TestComputeSegments(t *testing.T) {
	s := Compute(syntheticBranch())
	want := []Segment{
		{From: 0, To: 1, NUnstable: 0},
		{From: 2, To: 3, NUnstable: 1},
	}
	if len(s.Segments) != len(want) {
		t.Fatalf("expected %d segments, got %d: %v", len(want), len(s.Segments), s.Segments)
	}
	for i, w := range want {
		if s.Segments[i] != w {
			t.Errorf("segment %d: expected %+v, got %+v", i, w, s.Segments[i])
		}
	}
}
