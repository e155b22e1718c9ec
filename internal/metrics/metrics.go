// Package metrics computes summary diagnostics of a traced branch:
// arclength, corrector effort and stability segmentation. The run
// command prints them after every trace.
package metrics

import (
	"math"

	"github.com/san-kum/bifurc/internal/bif"
	"github.com/san-kum/bifurc/internal/continuation"
)

// Segment is a maximal run of points with a constant unstable count.
type Segment struct {
	From, To  int // indices into Branch.Points, inclusive
	NUnstable int
}

// Stats summarizes one branch.
type Stats struct {
	Arclength      float64
	ParamSpan      [2]float64
	MeanNewton     float64
	MaxNewton      int
	SpecialCounts  map[bif.PointType]int
	StableFraction float64 // fraction of points with no unstable eigenvalues
	Segments       []Segment
}

// Compute walks the branch once and fills every field. Eigen-dependent
// fields are zero when the run did not track stability.
func Compute(br *continuation.Branch) Stats {
	s := Stats{SpecialCounts: make(map[bif.PointType]int)}
	if br == nil || br.Len() == 0 {
		return s
	}

	s.ParamSpan = [2]float64{br.Points[0].P, br.Points[0].P}
	iterSum, stable := 0, 0
	for i, pt := range br.Points {
		if pt.P < s.ParamSpan[0] {
			s.ParamSpan[0] = pt.P
		}
		if pt.P > s.ParamSpan[1] {
			s.ParamSpan[1] = pt.P
		}
		iterSum += pt.NewtonIters
		if pt.NewtonIters > s.MaxNewton {
			s.MaxNewton = pt.NewtonIters
		}
		if pt.NUnstable == 0 {
			stable++
		}
		if i > 0 {
			prev := br.Points[i-1]
			dx := pt.X.Sub(prev.X).Norm()
			dp := pt.P - prev.P
			s.Arclength += math.Sqrt(dx*dx + dp*dp)
		}
	}
	s.MeanNewton = float64(iterSum) / float64(br.Len())
	s.StableFraction = float64(stable) / float64(br.Len())

	for _, sp := range br.Special {
		s.SpecialCounts[sp.Type]++
	}

	start, n := 0, br.Points[0].NUnstable
	for i := 1; i < br.Len(); i++ {
		if br.Points[i].NUnstable != n {
			s.Segments = append(s.Segments, Segment{From: start, To: i - 1, NUnstable: n})
			start, n = i, br.Points[i].NUnstable
		}
	}
	s.Segments = append(s.Segments, Segment{From: start, To: br.Len() - 1, NUnstable: n})
	return s
}
