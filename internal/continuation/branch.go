package continuation

import (
	"fmt"

	"github.com/san-kum/bifurc/internal/bif"
)

// Tangent is the unit (in the weighted metric) direction of the branch
// in (x, p) space.
type Tangent struct {
	X bif.State
	P float64
}

func (t Tangent) Clone() Tangent {
	return Tangent{X: t.X.Clone(), P: t.P}
}

// Snapshot is the per-step record accumulated into a Branch.
type Snapshot struct {
	X           bif.State
	P           float64
	Ds          float64
	Tangent     Tangent
	Step        int
	NewtonIters int
	NUnstable   int
	Eigenvalues []complex128
}

func (s Snapshot) Point() bif.Point {
	return bif.Point{X: s.X, P: s.P}
}

// SpecialPoint is an immutable record of a detected singularity.
type SpecialPoint struct {
	Type       bif.PointType
	X          bif.State
	P          float64
	Index      int // index into Branch.Points, strictly increasing
	EigenIndex int // index of the associated eigenvalue, -1 if none
	Tangent    Tangent
	Interval   [2]float64 // parameter bracket the crossing was found in
	Label      string
}

func (sp SpecialPoint) String() string {
	return fmt.Sprintf("%s at p=%.6g (step %d)", sp.Type, sp.P, sp.Index)
}

// Branch is the append-only result of one continuation run. It is
// read-only once Run returns; continuing from it creates new branches.
type Branch struct {
	Points  []Snapshot
	Special []SpecialPoint
	Status  Status
}

func (b *Branch) Len() int { return len(b.Points) }

// Last returns the final accepted snapshot.
func (b *Branch) Last() (Snapshot, bool) {
	if len(b.Points) == 0 {
		return Snapshot{}, false
	}
	return b.Points[len(b.Points)-1], true
}

// SpecialOfType filters recorded singularities by classification.
func (b *Branch) SpecialOfType(t bif.PointType) []SpecialPoint {
	var out []SpecialPoint
	for _, sp := range b.Special {
		if sp.Type == t {
			out = append(out, sp)
		}
	}
	return out
}

// MergeOrientation selects the sign convention when joining a backward
// and a forward branch from the same starting point.
type MergeOrientation int

const (
	// OrientForward orders the merged branch from the backward branch's
	// far end through the start point to the forward branch's far end.
	OrientForward MergeOrientation = iota
	// OrientBackward reverses that order.
	OrientBackward
)

// Merge joins a backward and a forward branch traced from the same
// initial point into one, reindexing special points. Either argument may
// be nil.
func Merge(backward, forward *Branch, orient MergeOrientation) *Branch {
	if orient == OrientBackward {
		backward, forward = forward, backward
	}
	merged := &Branch{}
	if backward != nil {
		n := len(backward.Points)
		for i := n - 1; i >= 0; i-- {
			s := backward.Points[i]
			s.Step = len(merged.Points)
			merged.Points = append(merged.Points, s)
		}
		for i := len(backward.Special) - 1; i >= 0; i-- {
			sp := backward.Special[i]
			sp.Index = n - 1 - sp.Index
			merged.Special = append(merged.Special, sp)
		}
		merged.Status = backward.Status
	}
	offset := len(merged.Points)
	if forward != nil {
		start := 0
		if offset > 0 && len(forward.Points) > 0 {
			// Both runs share the initial point; keep one copy.
			start = 1
		}
		for _, s := range forward.Points[start:] {
			s.Step = len(merged.Points)
			merged.Points = append(merged.Points, s)
		}
		for _, sp := range forward.Special {
			sp.Index += offset - start
			merged.Special = append(merged.Special, sp)
		}
		merged.Status = forward.Status
	}
	return merged
}
