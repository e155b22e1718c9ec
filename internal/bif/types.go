package bif

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Dot(other State) float64 {
	sum := 0.0
	for i := range s {
		sum += s[i] * other[i]
	}
	return sum
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] + other[i]
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] - other[i]
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// AddScaled returns s + factor*other without mutating either operand.
func (s State) AddScaled(factor float64, other State) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] + factor*other[i]
	}
	return result
}

// Point is a (state, parameter) pair, the fundamental unknown on a branch.
type Point struct {
	X State
	P float64
}

func (pt Point) Clone() Point {
	return Point{X: pt.X.Clone(), P: pt.P}
}

func (pt Point) String() string {
	return fmt.Sprintf("p=%.6g |x|=%.6g", pt.P, pt.X.Norm())
}

// PointType classifies a point recorded along a branch.
type PointType int

const (
	Regular PointType = iota
	Fold
	Hopf
	BranchPoint
	PeriodDoubling
	NeimarkSacker
	BogdanovTakens
	Cusp
	ZeroHopf
	Undetermined
)

var pointTypeNames = map[PointType]string{
	Regular:        "regular",
	Fold:           "fold",
	Hopf:           "hopf",
	BranchPoint:    "branch point",
	PeriodDoubling: "period doubling",
	NeimarkSacker:  "neimark-sacker",
	BogdanovTakens: "bogdanov-takens",
	Cusp:           "cusp",
	ZeroHopf:       "zero-hopf",
	Undetermined:   "undetermined",
}

func (t PointType) String() string {
	if name, ok := pointTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PointType(%d)", int(t))
}
